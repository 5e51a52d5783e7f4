package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feliperocha/go-silhouette/internal/config"
	"github.com/feliperocha/go-silhouette/internal/log"
	"github.com/feliperocha/go-silhouette/pkg/mask"
	"github.com/feliperocha/go-silhouette/pkg/perf"
	"github.com/feliperocha/go-silhouette/pkg/pose"
	"github.com/feliperocha/go-silhouette/pkg/protocol"
	"github.com/feliperocha/go-silhouette/pkg/session"
	"github.com/feliperocha/go-silhouette/pkg/supervisor"
	"github.com/feliperocha/go-silhouette/pkg/web"
)

// WorkerID is the supervisor id of the game loop worker.
const WorkerID = "game"

// AppConfig is the top-level runtime configuration.
type AppConfig struct {
	ConfigPath   string
	Port         string
	Dashboard    bool
	Autostart    bool
	MockDetector bool
	ModelPath    string
}

// DefaultAppConfig returns the standard runtime setup.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		ConfigPath: "config.json",
		Port:       "8080",
		Dashboard:  true,
		Autostart:  true,
	}
}

// App owns the whole process: config store, camera, detector, target,
// supervisor, and dashboard.
type App struct {
	cfg AppConfig

	store    *config.Store
	target   *mask.Target
	detector pose.Detector
	camera   FrameSource
	ctrl     *perf.Controller
	sup      *supervisor.Supervisor
	loop     *Loop
	server   *web.Server
}

// New creates an unstarted App.
func New(cfg AppConfig) *App {
	return &App{cfg: cfg}
}

// Init loads configuration and opens every device. A missing target
// asset or camera is fatal here, before any round can start.
func (a *App) Init() error {
	store, err := config.Load(a.cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.store = store
	game := store.Game()

	a.target, err = mask.LoadTarget(game.TargetPath)
	if err != nil {
		return fmt.Errorf("load target silhouette: %w", err)
	}
	log.Info("target silhouette loaded",
		"path", game.TargetPath,
		"pixels", a.target.Pixels())

	if a.cfg.MockDetector {
		a.detector = pose.NewMock()
		log.Warn("using mock pose detector, no body will be detected")
	} else {
		detCfg := pose.DefaultConfig()
		if a.cfg.ModelPath != "" {
			detCfg.ModelPath = a.cfg.ModelPath
		}
		a.detector, err = pose.NewMoveNet(detCfg)
		if err != nil {
			return fmt.Errorf("load pose model: %w", err)
		}
	}

	a.camera, err = OpenCamera(store.Camera())
	if err != nil {
		return err
	}

	snapshots, err := NewDirSink(game.SnapshotsDir)
	if err != nil {
		return err
	}

	a.ctrl = perf.NewController(perf.HostProbe{})
	a.sup = supervisor.New()
	a.sup.OnCleanup(func() {
		a.camera.Close()
		a.detector.Close()
		a.target.Close()
	})

	loopOpts := []LoopOption{
		WithSnapshots(snapshots),
		WithStats(statsBridge{store: store}),
	}
	if a.cfg.Dashboard {
		a.server = web.NewServer(a.cfg.Port, store, a.sup, WorkerID)
		loopOpts = append(loopOpts, WithStatusHub(a.server.StatusHub()))
	}
	a.loop = NewLoop(store, a.camera, a.detector, a.target, a.ctrl, loopOpts...)
	return nil
}

// Run starts the worker and the dashboard, then polls results until
// ctx is canceled or the worker dies.
func (a *App) Run(ctx context.Context) error {
	go a.ctrl.RunSampler(ctx, time.Second)

	if err := a.sup.Register(WorkerID, nil); err != nil {
		return err
	}
	if err := a.sup.Start(WorkerID, a.loop.Run); err != nil {
		return err
	}
	if a.server != nil {
		a.server.StartAsync()
	}
	if a.cfg.Autostart {
		if err := a.sup.SendCommand(WorkerID, protocol.Command(protocol.TypeShowGame)); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := a.sup.GetResult(WorkerID, time.Second)
		if errors.Is(err, supervisor.ErrNoResult) {
			switch state, _ := a.sup.State(WorkerID); state {
			case supervisor.Error:
				return fmt.Errorf("game worker failed after %d errors", a.sup.ErrorCount(WorkerID))
			case supervisor.Stopped:
				log.Info("game worker stopped, shutting down")
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}

		switch msg.Type {
		case protocol.TypeResult:
			var result protocol.ResultData
			if err := msg.ParseData(&result); err != nil {
				log.Warn("unreadable result", "error", err)
				continue
			}
			log.Info("round finished",
				"won", result.Won,
				"fill_percentage", result.FillPercentage,
				"best_percentage", result.BestPercentage,
				"duration_sec", result.DurationSec)
		case protocol.TypeError:
			var errData protocol.ErrorData
			_ = msg.ParseData(&errData)
			return fmt.Errorf("game worker: %s", errData.Reason)
		}
	}
}

// Shutdown stops everything. Safe to call more than once.
func (a *App) Shutdown() {
	if a.server != nil {
		if err := a.server.Shutdown(); err != nil {
			log.Warn("dashboard shutdown failed", "error", err)
		}
	}
	if a.sup != nil {
		a.sup.Shutdown()
	}
}

// statsBridge hands end-of-round statistics to the config store.
type statsBridge struct {
	store *config.Store
}

func (b statsBridge) RecordRound(r session.RoundStats) {
	err := b.store.ApplyRound(config.StatsUpdate{
		Won:           r.Won,
		FillPercent:   r.BestPercent,
		TimeToWin:     r.TimeToWin,
		Playtime:      r.Playtime,
		SnapshotSaved: r.SnapshotSaved,
	})
	if err != nil {
		log.Warn("failed to persist round stats", "error", err)
	}
}
