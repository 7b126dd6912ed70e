// Command mudra controls a media player with hand gestures seen by a webcam.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/library"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

// version is set at build time
var version = "dev"

const stopTimeout = 10 * time.Second

func init() {
	// The tray needs the main OS thread.
	runtime.LockOSThread()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts Options

	rootCmd := &cobra.Command{
		Use:     "mudra",
		Short:   "Control a media player with hand gestures",
		Version: version,
		Long: `Mudra watches the webcam for two hands. The number of raised fingers on the
left hand selects a mode (1 play/pause, 2 volume, 3 seek, 4 load track) and the
right hand performs the gesture for that mode.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", "", "configuration directory (default ~/.mudra)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the gesture pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	runCmd.Flags().StringVar(&opts.ReplayFile, "replay", "", "read landmarks from a recording instead of the camera")
	runCmd.Flags().StringVar(&opts.Backend, "backend", "", "player backend: mpris, plugin or memory")

	var (
		out      string
		duration time.Duration
	)
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Record camera landmarks to a replay file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(opts, out, duration)
		},
	}
	recordCmd.Flags().StringVarP(&out, "out", "o", "landmarks.jsonl", "output file")
	recordCmd.Flags().DurationVarP(&duration, "duration", "d", 0, "stop after this long (default until interrupted)")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Rescan the media library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return scan(cmd, opts)
		},
	}

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently dispatched commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return history(cmd, opts, limit)
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")

	rootCmd.AddCommand(runCmd, recordCmd, scanCmd, historyCmd)
	return rootCmd
}

// run starts the fx graph and blocks until interrupted, the tray quits or a
// replay runs out.
func run(opts Options) error {
	var (
		a      *app.App
		cfg    *config.Config
		logger *zap.Logger
	)
	fxApp := fx.New(append(AppOptions(opts), fx.Populate(&a, &cfg, &logger))...)
	if err := fxApp.Err(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, cancelStart := context.WithTimeout(ctx, fx.DefaultTimeout)
	defer cancelStart()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}

	if cfg.Tray.Enabled {
		runTray(ctx, a, statusURL(cfg), logger)
	} else {
		select {
		case <-ctx.Done():
		case <-a.Done():
			logger.Info("pipeline finished")
		}
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelStop()
	return fxApp.Stop(stopCtx)
}

func runTray(ctx context.Context, a *app.App, url string, logger *zap.Logger) {
	t := tray.New(a.IsEnabled(), url)
	t.OnToggle(func(enabled bool) {
		if err := a.SetEnabled(enabled); err != nil {
			logger.Warn("saving detection toggle", zap.Error(err))
		}
	})

	t.OnQuit(func() {
		logger.Info("quit from tray menu")
	})

	snaps, unsubscribe := a.Subscribe()
	defer unsubscribe()
	go t.Follow(snaps)

	go func() {
		select {
		case <-ctx.Done():
		case <-a.Done():
		}
		t.Quit()
	}()

	t.Run()
}

// statusURL returns the address of the status page, or "" without a server.
func statusURL(cfg *config.Config) string {
	if !cfg.Server.Enabled {
		return ""
	}
	addr := cfg.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func record(opts Options, out string, duration time.Duration) error {
	cfg, err := newConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	det, err := detector.NewMediaPipeDetector(cfg.DetectorConfig(), logger)
	if err != nil {
		return err
	}
	src := app.NewCameraSource(capture.NewCamera(cfg.CaptureConfig()), det, nil, logger)
	if err := src.Open(); err != nil {
		return err
	}
	defer src.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	rec := detector.NewRecorder(f)
	defer rec.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.Camera.FPS))
	defer ticker.Stop()

	frames := 0
	logger.Info("recording landmarks", zap.String("file", out))
	for {
		select {
		case <-ctx.Done():
			logger.Info("recording finished", zap.Int("frames", frames))
			return nil
		case <-ticker.C:
			frame, err := src.Next()
			if err != nil {
				logger.Warn("reading frame", zap.Error(err))
				continue
			}
			if err := rec.Write(frame); err != nil {
				return err
			}
			frames++
		}
	}
}

func openStore(opts Options) (*config.Config, *store.Store, *zap.Logger, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, st, logger, nil
}

func scan(cmd *cobra.Command, opts Options) error {
	cfg, st, logger, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := library.New(cfg.LibraryConfig(), st.Tracks(), logger).Scan()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d added, %d removed, %d tracks\n", cfg.Library.Dir, res.Added, res.Removed, res.Total)
	return nil
}

func history(cmd *cobra.Command, opts Options, limit int) error {
	_, st, _, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	dispatches, err := st.Dispatches().List(limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, d := range dispatches {
		status := "ok"
		if !d.Success {
			status = "failed: " + d.Error
		}
		fmt.Fprintf(w, "%s  mode %d  %-10s %6d  %s\n",
			d.DispatchedAt.Local().Format(time.DateTime), d.Mode, d.Kind, d.Value, status)
	}
	return nil
}
