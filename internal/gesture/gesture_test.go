package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/mudra/internal/detector"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return t0.Add(time.Duration(seconds * float64(time.Second)))
}

func frame(ts time.Time, hands ...detector.HandLandmarks) detector.Frame {
	return detector.Frame{Hands: hands, Timestamp: ts}
}

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name       string
		a, b, c, d r2.Vec
		eps        float64
		want       bool
	}{
		{
			name: "crossing diagonals",
			a:    r2.Vec{X: 0, Y: 0}, b: r2.Vec{X: 1, Y: 1},
			c: r2.Vec{X: 0, Y: 1}, d: r2.Vec{X: 1, Y: 0},
			want: true,
		},
		{
			name: "parallel horizontals",
			a:    r2.Vec{X: 0, Y: 0}, b: r2.Vec{X: 1, Y: 0},
			c: r2.Vec{X: 0, Y: 1}, d: r2.Vec{X: 1, Y: 1},
			want: false,
		},
		{
			name: "disjoint on the same line",
			a:    r2.Vec{X: 0, Y: 0}, b: r2.Vec{X: 1, Y: 0},
			c: r2.Vec{X: 2, Y: 0}, d: r2.Vec{X: 3, Y: 0},
			want: false,
		},
		{
			name: "overlapping collinear",
			a:    r2.Vec{X: 0, Y: 0}, b: r2.Vec{X: 2, Y: 0},
			c: r2.Vec{X: 1, Y: 0}, d: r2.Vec{X: 3, Y: 0},
			want: false,
		},
		{
			name: "endpoint touching",
			a:    r2.Vec{X: 0, Y: 0}, b: r2.Vec{X: 1, Y: 1},
			c: r2.Vec{X: 1, Y: 1}, d: r2.Vec{X: 2, Y: 0},
			want: false,
		},
		{
			name: "lines cross outside the segments",
			a:    r2.Vec{X: 0, Y: 0}, b: r2.Vec{X: 1, Y: 1},
			c: r2.Vec{X: 3, Y: 0}, d: r2.Vec{X: 2, Y: 1},
			want: false,
		},
		{
			name: "zero length segment",
			a:    r2.Vec{X: 0.5, Y: 0.5}, b: r2.Vec{X: 0.5, Y: 0.5},
			c: r2.Vec{X: 0, Y: 1}, d: r2.Vec{X: 1, Y: 0},
			want: false,
		},
		{
			name: "shallow crossing inside epsilon band",
			a:    r2.Vec{X: 0, Y: 0}, b: r2.Vec{X: 1, Y: 0.001},
			c: r2.Vec{X: 0, Y: 0.001}, d: r2.Vec{X: 1, Y: 0},
			eps:  0.01,
			want: false,
		},
		{
			name: "shallow crossing without epsilon",
			a:    r2.Vec{X: 0, Y: 0}, b: r2.Vec{X: 1, Y: 0.001},
			c: r2.Vec{X: 0, Y: 0.001}, d: r2.Vec{X: 1, Y: 0},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentsIntersect(tt.a, tt.b, tt.c, tt.d, tt.eps))
			// The predicate is symmetric in the two segments.
			assert.Equal(t, tt.want, SegmentsIntersect(tt.c, tt.d, tt.a, tt.b, tt.eps))
		})
	}
}

func TestFingers(t *testing.T) {
	t.Run("counts raised fingers", func(t *testing.T) {
		for n := 0; n <= 4; n++ {
			h := detector.RaisedFingersLandmarks(detector.Left, n)
			fs := Fingers(&h)
			assert.Equal(t, n, fs.Count(), "n=%d", n)
			assert.Equal(t, n > 0, fs.Any(), "n=%d", n)
		}
	})

	t.Run("finger order is index first", func(t *testing.T) {
		h := detector.RaisedFingersLandmarks(detector.Left, 2)
		fs := Fingers(&h)
		assert.True(t, fs.Raised(Index))
		assert.True(t, fs.Raised(Middle))
		assert.False(t, fs.Raised(Ring))
		assert.False(t, fs.Raised(Pinky))
	})

	t.Run("tip level with joint is not raised", func(t *testing.T) {
		h := detector.OpenPalmLandmarks(detector.Right)
		h.Points[detector.PinkyTip].Y = h.Points[detector.PinkyDIP].Y
		assert.Equal(t, 3, Fingers(&h).Count())
	})

	t.Run("nil hand", func(t *testing.T) {
		assert.Equal(t, FingerState{}, Fingers(nil))
	})
}

func TestSelectMode(t *testing.T) {
	for n := 1; n <= 4; n++ {
		fs := FingerState{}
		for i := 0; i < n; i++ {
			fs[i] = true
		}
		assert.Equal(t, Mode(n), SelectMode(ModeVolume, &fs))
	}

	fist := FingerState{}
	assert.Equal(t, ModeSeek, SelectMode(ModeSeek, &fist), "fist keeps the latched mode")
	assert.Equal(t, ModeLoadTrack, SelectMode(ModeLoadTrack, nil), "absent hand keeps the latched mode")

	// Non-contiguous fingers count the same as contiguous ones.
	scattered := FingerState{Index: true, Pinky: true}
	assert.Equal(t, ModeVolume, SelectMode(ModePlayPause, &scattered))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "play/pause", ModePlayPause.String())
	assert.Equal(t, "load track", ModeLoadTrack.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
	assert.False(t, Mode(0).Valid())
	assert.True(t, ModeSeek.Valid())
}

func TestClassifier_VolumeForDistance(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	tests := []struct {
		distance float64
		want     int
	}{
		{0.02, 0},
		{0.1, 100},
		{0.06, 50},
		{0.15, 100},
		{0.0, 0},
		{0.04, 25},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.VolumeForDistance(tt.distance), "distance %g", tt.distance)
	}
}

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	t.Run("play/pause on crossed thumb and index", func(t *testing.T) {
		h := detector.PinchCrossLandmarks()
		a, ok := c.Classify(&h, ModePlayPause, t0)
		require.True(t, ok)
		assert.Equal(t, ActionPlayPause, a.Kind)
		assert.Equal(t, ModePlayPause, a.Mode)
		assert.Equal(t, t0, a.Timestamp)
	})

	t.Run("no play/pause without crossing", func(t *testing.T) {
		h := detector.OpenPalmLandmarks(detector.Right)
		_, ok := c.Classify(&h, ModePlayPause, t0)
		assert.False(t, ok)
	})

	t.Run("volume from pinch distance", func(t *testing.T) {
		h := detector.PinchLandmarks(0.06)
		a, ok := c.Classify(&h, ModeVolume, t0)
		require.True(t, ok)
		assert.Equal(t, ActionSetVolume, a.Kind)
		assert.Equal(t, 50, a.Volume)
	})

	t.Run("seek thresholds", func(t *testing.T) {
		h := detector.PointAtLandmarks(0.25)
		a, ok := c.Classify(&h, ModeSeek, t0)
		require.True(t, ok)
		assert.Equal(t, ActionSeek, a.Kind)
		assert.Equal(t, 10*time.Second, a.SeekOffset)

		h = detector.PointAtLandmarks(0.75)
		a, ok = c.Classify(&h, ModeSeek, t0)
		require.True(t, ok)
		assert.Equal(t, -10*time.Second, a.SeekOffset)
		assert.Equal(t, int64(-10000), a.Value())

		h = detector.PointAtLandmarks(0.5)
		_, ok = c.Classify(&h, ModeSeek, t0)
		assert.False(t, ok)
	})

	t.Run("load track needs a raised finger", func(t *testing.T) {
		h := detector.RaisedFingersLandmarks(detector.Right, 1)
		a, ok := c.Classify(&h, ModeLoadTrack, t0)
		require.True(t, ok)
		assert.Equal(t, ActionLoadTrack, a.Kind)

		fist := detector.FistLandmarks(detector.Right)
		_, ok = c.Classify(&fist, ModeLoadTrack, t0)
		assert.False(t, ok)
	})

	t.Run("nil hand and unknown mode", func(t *testing.T) {
		_, ok := c.Classify(nil, ModeVolume, t0)
		assert.False(t, ok)

		h := detector.PinchLandmarks(0.05)
		_, ok = c.Classify(&h, Mode(9), t0)
		assert.False(t, ok)
	})
}

func TestGate(t *testing.T) {
	g := NewGate(800 * time.Millisecond)

	assert.True(t, g.Allow(at(0)), "first action is always allowed")
	_, fired := g.Last()
	assert.False(t, fired)

	g = g.Accept(at(0))
	assert.False(t, g.Allow(at(0.5)))
	assert.False(t, g.Allow(at(0.8)), "exactly one interval later is still closed")
	assert.True(t, g.Allow(at(0.9)))

	last, fired := g.Last()
	assert.True(t, fired)
	assert.Equal(t, at(0), last)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.VolumeMaxDistance = cfg.VolumeMinDistance
	cfg.SeekOffset = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volume distance range")
	assert.Contains(t, err.Error(), "seek offset")
}

func TestInterpreter_ModeLatching(t *testing.T) {
	in := NewInterpreter(DefaultConfig())

	for n := 1; n <= 4; n++ {
		state := in.InitialState()
		state, _ = in.Step(state, frame(at(0), detector.RaisedFingersLandmarks(detector.Left, n)))
		assert.Equal(t, Mode(n), state.Mode)

		state, _ = in.Step(state, frame(at(0.1), detector.FistLandmarks(detector.Left)))
		assert.Equal(t, Mode(n), state.Mode, "fist keeps mode %d", n)

		state, _ = in.Step(state, frame(at(0.2)))
		assert.Equal(t, Mode(n), state.Mode, "absent left hand keeps mode %d", n)

		state, _ = in.Step(state, frame(at(0.3), detector.OpenPalmLandmarks(detector.Right)))
		assert.Equal(t, Mode(n), state.Mode, "right hand never changes mode")
	}
}

func TestInterpreter_Debounce(t *testing.T) {
	in := NewInterpreter(DefaultConfig())
	state := in.InitialState()
	pinch := detector.PinchCrossLandmarks()

	var dispatched []time.Time
	for _, ts := range []float64{0.0, 0.5, 0.9} {
		var a *Action
		state, a = in.Step(state, frame(at(ts), pinch))
		if a != nil {
			dispatched = append(dispatched, a.Timestamp)
		}
	}

	assert.Equal(t, []time.Time{at(0), at(0.9)}, dispatched)
}

func TestInterpreter_GateSharedAcrossModes(t *testing.T) {
	in := NewInterpreter(DefaultConfig())
	state := in.InitialState()

	state, a := in.Step(state, frame(at(0), detector.PinchCrossLandmarks()))
	require.NotNil(t, a)

	// Switch to volume and gesture immediately: still inside the window.
	state, _ = in.Step(state, frame(at(0.1), detector.RaisedFingersLandmarks(detector.Left, 2)))
	require.Equal(t, ModeVolume, state.Mode)
	state, a = in.Step(state, frame(at(0.2), detector.PinchLandmarks(0.06)))
	assert.Nil(t, a)

	_, a = in.Step(state, frame(at(0.85), detector.PinchLandmarks(0.06)))
	require.NotNil(t, a)
	assert.Equal(t, ActionSetVolume, a.Kind)
}

func TestInterpreter_ModeAppliesFromNextFrame(t *testing.T) {
	right := detector.PinchCrossLandmarks()
	left := detector.RaisedFingersLandmarks(detector.Left, 2)

	// Hands arrive in whatever order the detector reports them.
	tests := []struct {
		name  string
		hands []detector.HandLandmarks
	}{
		{"right first", []detector.HandLandmarks{right, left}},
		{"left first", []detector.HandLandmarks{left, right}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewInterpreter(DefaultConfig())
			state := in.InitialState()

			// Left hand asks for volume while the right hand crosses thumb and index.
			state, a := in.Step(state, frame(at(0), tt.hands...))
			require.NotNil(t, a)
			assert.Equal(t, ActionPlayPause, a.Kind, "classified under the mode at frame start")
			assert.Equal(t, ModePlayPause, a.Mode)
			assert.Equal(t, ModeVolume, state.Mode)

			_, a = in.Step(state, frame(at(1), detector.PinchLandmarks(0.1)))
			require.NotNil(t, a)
			assert.Equal(t, ActionSetVolume, a.Kind)
			assert.Equal(t, 100, a.Volume)
		})
	}
}

func TestInterpreter_NoCandidateLeavesGateOpen(t *testing.T) {
	in := NewInterpreter(DefaultConfig())
	state := in.InitialState()
	state, _ = in.Step(state, frame(at(0), detector.RaisedFingersLandmarks(detector.Left, 3)))

	// Hand in the dead zone produces nothing and must not close the gate.
	state, a := in.Step(state, frame(at(0.1), detector.PointAtLandmarks(0.5)))
	assert.Nil(t, a)

	_, a = in.Step(state, frame(at(0.2), detector.PointAtLandmarks(0.25)))
	require.NotNil(t, a)
	assert.Equal(t, 10*time.Second, a.SeekOffset)
}

func TestInterpreter_ZeroStateStartsInPlayPause(t *testing.T) {
	in := NewInterpreter(DefaultConfig())

	state, a := in.Step(State{}, frame(at(0), detector.PinchCrossLandmarks()))
	require.NotNil(t, a)
	assert.Equal(t, ModePlayPause, state.Mode)
	assert.Equal(t, 800*time.Millisecond, state.Gate.Interval)
}
