package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/feliperocha/go-silhouette/internal/config"
	"github.com/feliperocha/go-silhouette/pkg/hub"
	"github.com/feliperocha/go-silhouette/pkg/protocol"
	"github.com/feliperocha/go-silhouette/pkg/supervisor"
)

// handleStatus reports the worker's lifecycle state and how many
// dashboard clients are watching. Live round data flows over the
// websocket, not this endpoint.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	state, err := s.sup.State(s.workerID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"worker":       s.workerID,
		"worker_state": state.String(),
		"error_count":  s.sup.ErrorCount(s.workerID),
		"clients":      s.statusHub.ClientCount(),
	})
}

// handleStats returns the persisted aggregate statistics.
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.store.Stats())
}

// handleGetConfig returns the full configuration.
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.store.Config())
}

// ConfigUpdateRequest carries the game settings a client may change
// between rounds.
type ConfigUpdateRequest struct {
	DurationSec   *int     `json:"duration_sec,omitempty"`
	WinThreshold  *float64 `json:"win_threshold,omitempty"`
	MinBodyPixels *int     `json:"min_body_pixels,omitempty"`
	Mirror        *bool    `json:"mirror,omitempty"`
}

// handleUpdateConfig applies a partial game-settings update.
func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	var req ConfigUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}

	err := s.store.Update(func(cfg *config.Config) {
		if req.DurationSec != nil {
			cfg.Game.DurationSec = *req.DurationSec
		}
		if req.WinThreshold != nil {
			cfg.Game.WinThreshold = *req.WinThreshold
		}
		if req.MinBodyPixels != nil {
			cfg.Game.MinBodyPixels = *req.MinBodyPixels
		}
		if req.Mirror != nil {
			cfg.Visual.Mirror = *req.Mirror
		}
	})
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.store.Config())
}

// CommandRequest is the body for POST /api/command.
type CommandRequest struct {
	Action string `json:"action"`
}

var commandActions = map[string]protocol.MessageType{
	"show_game": protocol.TypeShowGame,
	"hide_game": protocol.TypeHideGame,
	"stop":      protocol.TypeStop,
	"exit":      protocol.TypeExit,
}

// handleCommand forwards a control action to the game worker.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}
	msgType, ok := commandActions[req.Action]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown action: " + req.Action,
		})
	}

	if err := s.sup.SendCommand(s.workerID, protocol.Command(msgType)); err != nil {
		status := fiber.StatusServiceUnavailable
		if errors.Is(err, supervisor.ErrNotRegistered) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"action": req.Action, "queued": true})
}

// handleStatusWS handles websocket connections for the live round
// status feed.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	if client == nil {
		// Hub already shut down, refuse the connection
		c.Close()
		return
	}
	client.Run()
}
