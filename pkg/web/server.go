// Package web serves the game dashboard: REST endpoints for status,
// stats, and configuration, a command endpoint for driving the game
// worker, and a websocket feed of live round status.
package web

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/feliperocha/go-silhouette/internal/config"
	"github.com/feliperocha/go-silhouette/internal/log"
	"github.com/feliperocha/go-silhouette/pkg/hub"
	"github.com/feliperocha/go-silhouette/pkg/supervisor"
)

// Server is the dashboard server. The game loop publishes into the
// status hub; browser clients subscribe at /ws/status.
type Server struct {
	app  *fiber.App
	port string

	store    *config.Store
	sup      *supervisor.Supervisor
	workerID string

	statusHub *hub.Hub

	cancelHub context.CancelFunc
}

// NewServer wires routes and the status hub.
func NewServer(port string, store *config.Store, sup *supervisor.Supervisor, workerID string) *Server {
	s := &Server{
		port:      port,
		store:     store,
		sup:       sup,
		workerID:  workerID,
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Silhouette Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)
	api.Get("/config", s.handleGetConfig)
	api.Put("/config", s.handleUpdateConfig)
	api.Post("/command", s.handleCommand)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// StatusHub returns the hub the game loop should broadcast into.
func (s *Server) StatusHub() *hub.Hub {
	return s.statusHub
}

// Start runs the hub and the listener. It blocks.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelHub = cancel
	go s.statusHub.Run(ctx)

	log.Info("dashboard listening", "addr", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server failed", "error", err)
		}
	}()
}

// Shutdown stops the listener and the hub.
func (s *Server) Shutdown() error {
	if s.cancelHub != nil {
		s.cancelHub()
	}
	return s.app.Shutdown()
}
