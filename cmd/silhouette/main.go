// Silhouette is a motion game: fill the target silhouette with your
// body before the clock runs out.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/feliperocha/go-silhouette/internal/log"
	"github.com/feliperocha/go-silhouette/pkg/game"
)

func main() {
	cfg := parseFlags()

	app := game.New(cfg)
	if err := app.Init(); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() game.AppConfig {
	cfg := game.DefaultAppConfig()

	configPath := flag.String("config", cfg.ConfigPath, "Path to the config file")
	port := flag.String("port", cfg.Port, "Dashboard HTTP port")
	dashboard := flag.Bool("dashboard", cfg.Dashboard, "Serve the web dashboard")
	autostart := flag.Bool("autostart", cfg.Autostart, "Start a round immediately")
	mock := flag.Bool("mock-detector", false, "Run without a pose model (nothing is detected)")
	model := flag.String("model", "", "Pose model path (overrides the default)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	cfg.ConfigPath = *configPath
	cfg.Port = *port
	cfg.Dashboard = *dashboard
	cfg.Autostart = *autostart
	cfg.MockDetector = *mock
	cfg.ModelPath = *model
	return cfg
}
