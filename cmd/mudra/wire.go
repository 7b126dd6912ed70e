package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/library"
	"github.com/ayusman/mudra/internal/player"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
)

// Options are the command line settings that shape the graph.
type Options struct {
	ConfigDir string
	// ReplayFile, when set, replaces the camera with a landmark recording.
	ReplayFile string
	// Backend overrides player.backend.
	Backend string
}

// AppOptions returns the fx options for the full pipeline.
func AppOptions(opts Options) []fx.Option {
	return []fx.Option{
		fx.Supply(opts),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Provide(
			newConfig,
			newLogger,
			newStore,
			newLibrary,
			newPlayer,
			newDispatcher,
			newSource,
			newApp,
			newServer,
		),
		fx.Invoke(func(*app.App, *server.Server) {}),
	}
}

func newConfig(opts Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	if opts.ReplayFile != "" {
		cfg.Detector.Source = config.SourceReplay
		cfg.Detector.ReplayFile = opts.ReplayFile
	}
	if opts.Backend != "" {
		cfg.Player.Backend = opts.Backend
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return cfg.Log.Build()
}

func newStore(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*store.Store, error) {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Store.HistoryKeep <= 0 {
				return nil
			}
			n, err := st.Dispatches().Prune(cfg.Store.HistoryKeep)
			if err != nil {
				return fmt.Errorf("prune history: %w", err)
			}
			if n > 0 {
				logger.Info("pruned dispatch history", zap.Int64("removed", n))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return st.Close()
		},
	})
	return st, nil
}

func newLibrary(lc fx.Lifecycle, cfg *config.Config, st *store.Store, logger *zap.Logger) *library.Library {
	lib := library.New(cfg.LibraryConfig(), st.Tracks(), logger)

	var cancel context.CancelFunc
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := lib.Scan(); err != nil {
				logger.Warn("initial library scan failed", zap.Error(err))
			}
			if !cfg.Library.Watch {
				close(done)
				return nil
			}

			var watchCtx context.Context
			watchCtx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				if err := lib.Watch(watchCtx); err != nil {
					logger.Warn("library watch stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return lib
}

func newPlayer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (player.Player, error) {
	var p player.Player

	switch cfg.Player.Backend {
	case config.BackendMPRIS:
		bus, err := player.NewStdBus(cfg.Player.MPRISName)
		if err != nil {
			return nil, err
		}
		logger.Info("controlling MPRIS player", zap.String("name", bus.Destination()))
		p = player.NewMPRIS(bus, logger)

	case config.BackendPlugin:
		mgr := plugin.NewManager(cfg.Player.PluginDir, logger)
		if err := mgr.Discover(); err != nil {
			return nil, err
		}
		pl, err := mgr.Get(cfg.Player.PluginName)
		if err != nil {
			return nil, err
		}
		pluginCfg, err := cfg.Player.PluginConfigJSON()
		if err != nil {
			return nil, err
		}
		logger.Info("controlling player through plugin", zap.String("plugin", pl.Manifest.Name))
		p = player.NewPluginPlayer(pl, plugin.NewExecutor(cfg.Player.Timeout, logger), pluginCfg)

	case config.BackendMemory:
		logger.Info("using in-memory player, no media will play")
		p = player.NewMemory()

	default:
		return nil, fmt.Errorf("unknown player backend %q", cfg.Player.Backend)
	}

	lc.Append(fx.StopHook(p.Close))
	return p, nil
}

func newDispatcher(lc fx.Lifecycle, cfg *config.Config, p player.Player, lib *library.Library, st *store.Store, logger *zap.Logger) *dispatch.Dispatcher {
	d := dispatch.New(dispatch.Config{
		QueueSize: cfg.Player.QueueSize,
		Timeout:   cfg.Player.Timeout,
	}, p, lib, st.Dispatches(), logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			d.Start()
			return nil
		},
		OnStop: d.Stop,
	})
	return d
}

// newSource builds the landmark source. The camera and MediaPipe process are
// opened lazily by the pipeline, so constructing a source never touches hardware.
func newSource(cfg *config.Config, logger *zap.Logger) (app.Source, error) {
	if cfg.Detector.Source == config.SourceReplay {
		logger.Info("replaying landmarks", zap.String("file", cfg.Detector.ReplayFile))
		return detector.OpenReplay(cfg.Detector.ReplayFile)
	}

	det, err := detector.NewMediaPipeDetector(cfg.DetectorConfig(), logger)
	if err != nil {
		return nil, err
	}

	var gate *capture.MotionGate
	if cfg.Camera.MotionGate {
		gate = capture.NewMotionGate(cfg.Camera.MotionThreshold, 2*time.Second)
	}

	src := app.NewCameraSource(capture.NewCamera(cfg.CaptureConfig()), det, gate, logger)
	if cfg.Server.Enabled && cfg.Server.Preview {
		src.EnablePreview()
	}
	return src, nil
}

func newApp(lc fx.Lifecycle, cfg *config.Config, src app.Source, d *dispatch.Dispatcher, st *store.Store, logger *zap.Logger) *app.App {
	a := app.New(app.Config{
		FPS:     cfg.Camera.FPS,
		IdleFPS: cfg.Camera.IdleFPS,
	}, src, gesture.NewInterpreter(cfg.GestureConfig()), d, st.Settings(), logger)

	d.OnResult(a.RecordResult)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return a.Start()
		},
		OnStop: func(ctx context.Context) error {
			return a.Stop()
		},
	})
	return a
}

// newServer returns nil when the server is disabled.
func newServer(lc fx.Lifecycle, cfg *config.Config, a *app.App, src app.Source, st *store.Store, lib *library.Library, logger *zap.Logger) *server.Server {
	if !cfg.Server.Enabled {
		return nil
	}

	sc := server.Config{
		StaticDir: cfg.Server.StaticDir,
		Store:     st,
		Pipeline:  a,
		Library:   lib,
		Logger:    logger,
	}
	if fs, ok := src.(server.FrameSource); ok && cfg.Server.Preview {
		sc.Frames = fs
	}

	srv := server.New(sc)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start(cfg.Server.Addr)
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	})
	return srv
}
