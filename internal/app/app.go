// Package app runs the frame pipeline: it pulls hand landmarks from a source,
// interprets them and hands accepted actions to the dispatcher.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
)

// Pipeline defaults.
const (
	DefaultFPS     = 15
	DefaultIdleFPS = 5

	// SettingEnabled is the settings key holding the detection toggle.
	SettingEnabled = "detection.enabled"

	subscriberBuffer = 4
)

// Submitter accepts actions for execution. *dispatch.Dispatcher implements it.
type Submitter interface {
	Submit(a gesture.Action) bool
}

// Settings persists the detection toggle. *store.SettingsRepository implements it.
type Settings interface {
	GetBool(key string, def bool) (bool, error)
	SetBool(key string, value bool) error
}

// Config holds pipeline options.
type Config struct {
	// FPS is the tick rate while the source is active.
	FPS int
	// IdleFPS is the tick rate while the source reports itself idle.
	IdleFPS int
}

// Snapshot is the observable pipeline state after a frame.
type Snapshot struct {
	Mode         string                   `json:"mode"`
	ModeNumber   int                      `json:"mode_number"`
	Enabled      bool                     `json:"enabled"`
	Running      bool                     `json:"running"`
	Idle         bool                     `json:"idle"`
	Hands        []detector.HandLandmarks `json:"hands"`
	LastAction   string                   `json:"last_action,omitempty"`
	LastActionAt *time.Time               `json:"last_action_at,omitempty"`
	LastError    string                   `json:"last_error,omitempty"`
	Timestamp    time.Time                `json:"timestamp"`
}

// App is the gesture pipeline.
type App struct {
	cfg        Config
	source     Source
	interp     *gesture.Interpreter
	dispatcher Submitter
	settings   Settings
	logger     *zap.Logger

	mu       sync.RWMutex
	state    gesture.State
	enabled  bool
	closed   bool
	snapshot Snapshot
	subs     map[chan Snapshot]struct{}
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates an App reading from source. settings may be nil, in which case
// the toggle is not persisted and detection starts enabled.
func New(cfg Config, source Source, interp *gesture.Interpreter, d Submitter, settings Settings, logger *zap.Logger) *App {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.IdleFPS <= 0 || cfg.IdleFPS > cfg.FPS {
		cfg.IdleFPS = min(DefaultIdleFPS, cfg.FPS)
	}

	a := &App{
		cfg:        cfg,
		source:     source,
		interp:     interp,
		dispatcher: d,
		settings:   settings,
		logger:     logger.Named("app"),
		state:      interp.InitialState(),
		enabled:    true,
		subs:       make(map[chan Snapshot]struct{}),
		done:       make(chan struct{}),
	}

	if settings != nil {
		enabled, err := settings.GetBool(SettingEnabled, true)
		if err != nil {
			a.logger.Warn("loading detection toggle", zap.Error(err))
		} else {
			a.enabled = enabled
		}
	}

	a.snapshot = Snapshot{
		Mode:       a.state.Mode.String(),
		ModeNumber: int(a.state.Mode),
		Enabled:    a.enabled,
		Hands:      []detector.HandLandmarks{},
	}
	return a
}

// SetEnabled persists the choice, then turns detection on or off. If saving
// fails the toggle is left as it was. While disabled the source is not read.
func (a *App) SetEnabled(enabled bool) error {
	if a.settings != nil {
		if err := a.settings.SetBool(SettingEnabled, enabled); err != nil {
			return fmt.Errorf("persist detection toggle: %w", err)
		}
	}

	a.mu.Lock()
	a.enabled = enabled
	a.snapshot.Enabled = enabled
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.logger.Info("detection toggled", zap.Bool("enabled", enabled))
	a.publish(snap)
	return nil
}

// IsEnabled returns whether detection is enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Mode returns the currently latched mode.
func (a *App) Mode() gesture.Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Mode
}

// Snapshot returns the latest pipeline state.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

func (a *App) snapshotLocked() Snapshot {
	s := a.snapshot
	s.Hands = append([]detector.HandLandmarks{}, a.snapshot.Hands...)
	return s
}

// Subscribe returns a channel receiving a snapshot after every frame and
// toggle change. Slow subscribers miss snapshots rather than stall the
// pipeline. The returned function unsubscribes and closes the channel.
func (a *App) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	a.mu.Lock()
	a.subs[ch] = struct{}{}
	a.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, ch)
			a.mu.Unlock()
			close(ch)
		})
	}
}

func (a *App) publish(s Snapshot) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for ch := range a.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// RecordResult folds a dispatch outcome into the snapshot. Register it with
// Dispatcher.OnResult.
func (a *App) RecordResult(res dispatch.Result) {
	a.mu.Lock()
	if res.Err != nil {
		a.snapshot.LastError = fmt.Sprintf("%s: %v", res.Action, res.Err)
	} else {
		a.snapshot.LastError = ""
	}
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.publish(snap)
}

// Start opens the source and begins the pipeline. Starting a running App is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.closed {
		return errors.New("app already stopped")
	}

	if o, ok := a.source.(opener); ok {
		if err := o.Open(); err != nil {
			return fmt.Errorf("open source: %w", err)
		}
	}

	a.stopCh = make(chan struct{})
	a.snapshot.Running = true
	go a.run(a.stopCh)

	a.logger.Info("pipeline started", zap.Int("fps", a.cfg.FPS))
	return nil
}

// Stop halts the pipeline and closes the source.
func (a *App) Stop() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	stopCh := a.stopCh
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-a.done
	}

	err := a.source.Close()
	if err != nil {
		a.logger.Warn("closing source", zap.Error(err))
	}
	a.logger.Info("pipeline stopped")
	return err
}

// Done is closed when the pipeline goroutine exits, either after Stop or
// when the source reports ErrEndOfStream. It never closes before Start.
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Process interprets one frame, submits the accepted action if any and
// publishes the new snapshot.
func (a *App) Process(frame detector.Frame) *gesture.Action {
	a.mu.Lock()
	prev := a.state.Mode
	next, action := a.interp.Step(a.state, frame)
	a.state = next

	a.snapshot.Mode = next.Mode.String()
	a.snapshot.ModeNumber = int(next.Mode)
	a.snapshot.Hands = append(a.snapshot.Hands[:0:0], frame.Hands...)
	a.snapshot.Timestamp = frame.Timestamp
	if action != nil {
		at := action.Timestamp
		a.snapshot.LastAction = action.String()
		a.snapshot.LastActionAt = &at
	}
	snap := a.snapshotLocked()
	a.mu.Unlock()

	if next.Mode != prev {
		a.logger.Info("mode changed", zap.Stringer("from", prev), zap.Stringer("to", next.Mode))
	}

	if action != nil {
		a.logger.Debug("action accepted", zap.Stringer("action", action), zap.Stringer("mode", action.Mode))
		if !a.dispatcher.Submit(*action) {
			a.logger.Debug("action not queued", zap.Stringer("action", action))
		}
	}

	a.publish(snap)
	return action
}
