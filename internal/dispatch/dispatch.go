// Package dispatch executes gesture actions against the media player off the
// frame pipeline.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/player"
	"github.com/ayusman/mudra/internal/store"
)

// Default dispatcher settings.
const (
	DefaultQueueSize = 8
	DefaultTimeout   = 2 * time.Second
)

// TrackSource picks the next track to load. *library.Library implements it.
type TrackSource interface {
	Next() (*store.Track, error)
}

// History records dispatch outcomes. *store.DispatchRepository implements it.
type History interface {
	Create(d *store.Dispatch) error
}

// Config holds dispatcher settings.
type Config struct {
	QueueSize int
	Timeout   time.Duration
}

// Result is the outcome of one executed action.
type Result struct {
	Action gesture.Action
	// Track is the track loaded by the action, if any.
	Track    *store.Track
	Err      error
	Started  time.Time
	Duration time.Duration
}

// OK reports whether the action succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Dispatcher runs actions on a single worker goroutine in submission order.
type Dispatcher struct {
	player  player.Player
	tracks  TrackSource
	history History
	timeout time.Duration
	logger  *zap.Logger

	queue chan gesture.Action

	mu        sync.RWMutex
	listeners []func(Result)
	running   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	dropped   int
}

// New creates a Dispatcher. tracks and history may be nil; load requests then
// fail and outcomes are not recorded.
func New(cfg Config, p player.Player, tracks TrackSource, history History, logger *zap.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Dispatcher{
		player:  p,
		tracks:  tracks,
		history: history,
		timeout: cfg.Timeout,
		logger:  logger.Named("dispatch"),
		queue:   make(chan gesture.Action, cfg.QueueSize),
	}
}

// OnResult registers fn to be called with every result, on the worker goroutine.
func (d *Dispatcher) OnResult(fn func(Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Start launches the worker.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.stopCh = make(chan struct{})

	d.wg.Add(1)
	go d.run(d.stopCh)
}

// Stop halts the worker after the action in progress. Queued actions are discarded.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues a for execution without blocking. It returns false when the
// dispatcher is stopped or the queue is full, in which case a is dropped.
func (d *Dispatcher) Submit(a gesture.Action) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return false
	}

	select {
	case d.queue <- a:
		return true
	default:
		d.dropped++
		d.logger.Warn("dispatch queue full, dropping action",
			zap.Stringer("action", a),
			zap.Int("dropped", d.dropped),
		)
		return false
	}
}

// Dropped returns the number of actions dropped because the queue was full.
func (d *Dispatcher) Dropped() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dropped
}

func (d *Dispatcher) run(stopCh <-chan struct{}) {
	defer d.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case a := <-d.queue:
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			d.Execute(ctx, a)
			cancel()
		}
	}
}

// Execute runs a synchronously, records the outcome and notifies listeners.
func (d *Dispatcher) Execute(ctx context.Context, a gesture.Action) Result {
	res := Result{Action: a, Started: time.Now()}

	switch a.Kind {
	case gesture.ActionPlayPause:
		res.Track, res.Err = d.togglePlayback(ctx)
	case gesture.ActionSetVolume:
		res.Err = d.player.SetVolume(ctx, a.Volume)
	case gesture.ActionSeek:
		res.Err = d.player.SeekBy(ctx, a.SeekOffset)
	case gesture.ActionLoadTrack:
		res.Track, res.Err = d.loadNext(ctx)
	default:
		res.Err = fmt.Errorf("unknown action kind %q", a.Kind)
	}
	res.Duration = time.Since(res.Started)

	fields := []zap.Field{
		zap.Stringer("action", a),
		zap.Stringer("mode", a.Mode),
		zap.Duration("elapsed", res.Duration),
	}
	if res.Track != nil {
		fields = append(fields, zap.String("track", res.Track.Path))
	}
	if res.Err != nil {
		d.logger.Warn("action failed", append(fields, zap.Error(res.Err))...)
	} else {
		d.logger.Info("action dispatched", fields...)
	}

	d.record(res)

	d.mu.RLock()
	listeners := d.listeners
	d.mu.RUnlock()
	for _, fn := range listeners {
		fn(res)
	}

	return res
}

// togglePlayback pauses a playing player and resumes a paused one. Resuming an
// empty player loads the next library track instead.
func (d *Dispatcher) togglePlayback(ctx context.Context) (*store.Track, error) {
	playing, err := d.player.IsPlaying(ctx)
	if err != nil {
		return nil, fmt.Errorf("query playback state: %w", err)
	}
	if playing {
		return nil, d.player.Pause(ctx)
	}

	err = d.player.Play(ctx)
	if errors.Is(err, player.ErrNoMedia) {
		return d.loadNext(ctx)
	}
	return nil, err
}

// loadNext opens the least recently played track and starts playback.
func (d *Dispatcher) loadNext(ctx context.Context) (*store.Track, error) {
	if d.tracks == nil {
		return nil, fmt.Errorf("load track: no library configured")
	}

	t, err := d.tracks.Next()
	if err != nil {
		return nil, fmt.Errorf("load track: %w", err)
	}
	if err := d.player.Open(ctx, t.Path); err != nil {
		return t, fmt.Errorf("open %s: %w", t.Path, err)
	}
	if err := d.player.Play(ctx); err != nil {
		return t, fmt.Errorf("play %s: %w", t.Path, err)
	}
	return t, nil
}

func (d *Dispatcher) record(res Result) {
	if d.history == nil {
		return
	}

	rec := &store.Dispatch{
		Kind:         string(res.Action.Kind),
		Value:        res.Action.Value(),
		Mode:         int(res.Action.Mode),
		Success:      res.OK(),
		DispatchedAt: res.Started,
	}
	if res.Track != nil {
		rec.TrackID = res.Track.ID
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	if err := d.history.Create(rec); err != nil {
		d.logger.Warn("failed to record dispatch", zap.Error(err))
	}
}
