package app

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	actions []gesture.Action
	reject  bool
}

func (r *recordingSubmitter) Submit(a gesture.Action) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject {
		return false
	}
	r.actions = append(r.actions, a)
	return true
}

func (r *recordingSubmitter) Actions() []gesture.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gesture.Action(nil), r.actions...)
}

// sliceSource yields the given frames, then ErrEndOfStream.
type sliceSource struct {
	mu     sync.Mutex
	frames []detector.Frame
	reads  int
	closed bool
}

func (s *sliceSource) Next() (detector.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reads >= len(s.frames) {
		return detector.Frame{}, detector.ErrEndOfStream
	}
	f := s.frames[s.reads]
	s.reads++
	return f, nil
}

func (s *sliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *sliceSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// idleSource never runs out and reports itself idle after the first frame.
type idleSource struct {
	sliceSource
	fps chan int
}

func (s *idleSource) Next() (detector.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return detector.Frame{Timestamp: time.Now()}, nil
}

func (s *idleSource) Idle() bool {
	return s.Reads() > 1
}

func (s *idleSource) SetFPS(fps int) {
	select {
	case s.fps <- fps:
	default:
	}
}

func newTestApp(t *testing.T, src Source, settings Settings) (*App, *recordingSubmitter) {
	t.Helper()
	sub := &recordingSubmitter{}
	a := New(Config{FPS: 200}, src, gesture.NewInterpreter(gesture.DefaultConfig()), sub, settings, zap.NewNop())
	return a, sub
}

func frameAt(base time.Time, ms int, hands ...detector.HandLandmarks) detector.Frame {
	return detector.Frame{Hands: hands, Timestamp: base.Add(time.Duration(ms) * time.Millisecond)}
}

func TestApp_Process_ModeThenAction(t *testing.T) {
	a, sub := newTestApp(t, &sliceSource{}, nil)
	base := time.Unix(1700000000, 0)

	if got := a.Mode(); got != gesture.ModePlayPause {
		t.Fatalf("initial mode = %v, want play/pause", got)
	}

	if action := a.Process(frameAt(base, 0, detector.RaisedFingersLandmarks(detector.Left, 2))); action != nil {
		t.Fatalf("left hand alone produced %v", action)
	}
	if got := a.Mode(); got != gesture.ModeVolume {
		t.Fatalf("mode = %v, want volume", got)
	}

	action := a.Process(frameAt(base, 100,
		detector.RaisedFingersLandmarks(detector.Left, 2),
		detector.PinchLandmarks(0.06),
	))
	if action == nil {
		t.Fatal("pinch in volume mode produced no action")
	}
	if action.Kind != gesture.ActionSetVolume || action.Volume != 50 {
		t.Errorf("action = %v, want volume 50%%", action)
	}

	actions := sub.Actions()
	if len(actions) != 1 || actions[0].Mode != gesture.ModeVolume {
		t.Errorf("submitted = %+v, want one volume action", actions)
	}

	snap := a.Snapshot()
	if snap.Mode != "volume" || snap.ModeNumber != 2 {
		t.Errorf("snapshot mode = %q (%d), want volume (2)", snap.Mode, snap.ModeNumber)
	}
	if snap.LastAction != "volume 50%" {
		t.Errorf("snapshot last action = %q", snap.LastAction)
	}
	if snap.LastActionAt == nil || !snap.LastActionAt.Equal(base.Add(100*time.Millisecond)) {
		t.Errorf("snapshot last action time = %v", snap.LastActionAt)
	}
	if len(snap.Hands) != 2 {
		t.Errorf("snapshot hands = %d, want 2", len(snap.Hands))
	}
}

func TestApp_Process_ModeChangeAppliesNextFrame(t *testing.T) {
	a, sub := newTestApp(t, &sliceSource{}, nil)
	base := time.Unix(1700000000, 0)

	hands := []detector.HandLandmarks{
		detector.RaisedFingersLandmarks(detector.Left, 3),
		detector.PointAtLandmarks(0.1),
	}

	if action := a.Process(frameAt(base, 0, hands...)); action != nil {
		t.Fatalf("first frame produced %v under play/pause", action)
	}

	action := a.Process(frameAt(base, 100, hands...))
	if action == nil || action.Kind != gesture.ActionSeek || action.SeekOffset != 10*time.Second {
		t.Fatalf("second frame action = %v, want seek +10s", action)
	}
	if len(sub.Actions()) != 1 {
		t.Errorf("submitted %d actions, want 1", len(sub.Actions()))
	}
}

func TestApp_Process_QueueFull(t *testing.T) {
	a, sub := newTestApp(t, &sliceSource{}, nil)
	sub.reject = true

	action := a.Process(frameAt(time.Unix(0, 0), 0, detector.PinchCrossLandmarks()))
	if action == nil {
		t.Fatal("expected play/pause action")
	}
	if a.Snapshot().LastAction != "play/pause" {
		t.Errorf("dropped action should still be shown as last action")
	}
}

func TestApp_SetEnabled_Persists(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	a, _ := newTestApp(t, &sliceSource{}, s.Settings())
	if !a.IsEnabled() {
		t.Fatal("detection should be enabled by default")
	}

	if err := a.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if a.IsEnabled() || a.Snapshot().Enabled {
		t.Error("detection should be disabled")
	}

	reloaded, _ := newTestApp(t, &sliceSource{}, s.Settings())
	if reloaded.IsEnabled() {
		t.Error("disabled toggle was not persisted")
	}
}

type failingSettings struct{}

func (failingSettings) GetBool(key string, def bool) (bool, error) { return def, nil }

func (failingSettings) SetBool(key string, v bool) error { return errors.New("disk full") }

func TestApp_SetEnabled_SaveFailureKeepsToggle(t *testing.T) {
	a, _ := newTestApp(t, &sliceSource{}, failingSettings{})
	snaps, cancel := a.Subscribe()
	defer cancel()

	if err := a.SetEnabled(false); err == nil {
		t.Fatal("SetEnabled() should report the save failure")
	}
	if !a.IsEnabled() || !a.Snapshot().Enabled {
		t.Error("detection was switched off although saving failed")
	}

	select {
	case s := <-snaps:
		t.Errorf("unexpected snapshot published: %+v", s)
	default:
	}
}

func TestApp_Run_Replay(t *testing.T) {
	base := time.Unix(1700000000, 0)

	var buf bytes.Buffer
	rec := detector.NewRecorder(&buf)
	frames := []detector.Frame{
		frameAt(base, 0, detector.RaisedFingersLandmarks(detector.Left, 4)),
		frameAt(base, 66, detector.RaisedFingersLandmarks(detector.Left, 4), detector.RaisedFingersLandmarks(detector.Right, 1)),
		frameAt(base, 133, detector.RaisedFingersLandmarks(detector.Right, 1)),
		frameAt(base, 1000, detector.RaisedFingersLandmarks(detector.Right, 2)),
	}
	for _, f := range frames {
		if err := rec.Write(f); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	a, sub := newTestApp(t, detector.NewReplay(&buf), nil)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not finish at end of stream")
	}

	actions := sub.Actions()
	if len(actions) != 2 {
		t.Fatalf("submitted %d actions, want 2: %+v", len(actions), actions)
	}
	for i, want := range []int{66, 1000} {
		if actions[i].Kind != gesture.ActionLoadTrack {
			t.Errorf("action %d kind = %s, want load_track", i, actions[i].Kind)
		}
		if !actions[i].Timestamp.Equal(base.Add(time.Duration(want) * time.Millisecond)) {
			t.Errorf("action %d at %v, want +%dms", i, actions[i].Timestamp, want)
		}
	}

	if a.Snapshot().Running {
		t.Error("snapshot should report the pipeline stopped")
	}
	if err := a.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestApp_Disabled_SkipsSource(t *testing.T) {
	src := &sliceSource{frames: []detector.Frame{{Timestamp: time.Now()}}}
	a, _ := newTestApp(t, src, nil)

	if err := a.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if got := src.Reads(); got != 0 {
		t.Errorf("source read %d times while disabled", got)
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !src.closed {
		t.Error("Stop() should close the source")
	}
	if err := a.Start(); err == nil {
		t.Error("Start() after Stop() should fail")
	}
}

func TestApp_IdleSourceLowersRate(t *testing.T) {
	src := &idleSource{fps: make(chan int, 1)}
	a := New(Config{FPS: 100, IdleFPS: 20}, src, gesture.NewInterpreter(gesture.DefaultConfig()), &recordingSubmitter{}, nil, zap.NewNop())

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	select {
	case fps := <-src.fps:
		if fps != 20 {
			t.Errorf("SetFPS(%d), want 20", fps)
		}
	case <-time.After(time.Second):
		t.Fatal("idle source did not lower the frame rate")
	}
}

func TestApp_Subscribe(t *testing.T) {
	a, _ := newTestApp(t, &sliceSource{}, nil)

	ch, cancel := a.Subscribe()
	a.Process(frameAt(time.Unix(0, 0), 0, detector.RaisedFingersLandmarks(detector.Left, 3)))

	select {
	case snap := <-ch:
		if snap.Mode != "seek" {
			t.Errorf("snapshot mode = %q, want seek", snap.Mode)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	a.Process(frameAt(time.Unix(1, 0), 0))
}

func TestApp_RecordResult(t *testing.T) {
	a, _ := newTestApp(t, &sliceSource{}, nil)
	action := gesture.Action{Kind: gesture.ActionSeek, SeekOffset: 10 * time.Second}

	a.RecordResult(dispatch.Result{Action: action, Err: errors.New("no media loaded")})
	if got := a.Snapshot().LastError; got != "seek +10s: no media loaded" {
		t.Errorf("LastError = %q", got)
	}

	a.RecordResult(dispatch.Result{Action: action})
	if got := a.Snapshot().LastError; got != "" {
		t.Errorf("LastError = %q, want cleared", got)
	}
}
