package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	hands []HandLandmarks
	err   error
	calls int
	mu    sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// fingerBases are the MCP landmark index and palm X offset of the four non-thumb fingers.
var fingerBases = [4]struct {
	mcp int
	dx  float64
}{
	{IndexMCP, 0.05},
	{MiddleMCP, 0.0},
	{RingMCP, -0.05},
	{PinkyMCP, -0.10},
}

// setFinger positions the four joints of a finger either extended upward or curled into the palm.
func setFinger(h *HandLandmarks, mcp int, x float64, raised bool) {
	h.Points[mcp] = Point3D{X: x, Y: 0.68}
	if raised {
		h.Points[mcp+1] = Point3D{X: x, Y: 0.55}
		h.Points[mcp+2] = Point3D{X: x, Y: 0.45}
		h.Points[mcp+3] = Point3D{X: x, Y: 0.35}
		return
	}
	h.Points[mcp+1] = Point3D{X: x, Y: 0.64, Z: -0.05}
	h.Points[mcp+2] = Point3D{X: x - 0.02, Y: 0.66, Z: -0.04}
	h.Points[mcp+3] = Point3D{X: x - 0.04, Y: 0.70, Z: -0.02}
}

// RaisedFingersLandmarks returns a hand with the first n non-thumb fingers
// (index, middle, ring, pinky in that order) raised and the rest curled.
// The thumb is tucked across the palm.
func RaisedFingersLandmarks(side Handedness, n int) HandLandmarks {
	h := HandLandmarks{Handedness: side, Score: 0.95}

	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}
	h.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.76}
	h.Points[ThumbMCP] = Point3D{X: 0.57, Y: 0.72}
	h.Points[ThumbIP] = Point3D{X: 0.55, Y: 0.70}
	h.Points[ThumbTip] = Point3D{X: 0.52, Y: 0.71}

	for i, f := range fingerBases {
		setFinger(&h, f.mcp, 0.5+f.dx, i < n)
	}
	return h
}

// FistLandmarks returns a closed hand with every finger curled.
func FistLandmarks(side Handedness) HandLandmarks {
	return RaisedFingersLandmarks(side, 0)
}

// OpenPalmLandmarks returns a hand with all four non-thumb fingers raised.
func OpenPalmLandmarks(side Handedness) HandLandmarks {
	h := RaisedFingersLandmarks(side, 4)
	h.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65}
	h.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60}
	return h
}

// PinchCrossLandmarks returns a right hand whose thumb segment (tip to IP)
// crosses the index segment (tip to DIP), the play/pause gesture.
func PinchCrossLandmarks() HandLandmarks {
	h := FistLandmarks(Right)
	h.Points[ThumbIP] = Point3D{X: 0.50, Y: 0.50}
	h.Points[ThumbTip] = Point3D{X: 0.56, Y: 0.44}
	h.Points[IndexDIP] = Point3D{X: 0.56, Y: 0.50}
	h.Points[IndexTip] = Point3D{X: 0.50, Y: 0.44}
	return h
}

// PinchLandmarks returns a right hand with thumb tip and index tip separated
// horizontally by distance, the volume gesture.
func PinchLandmarks(distance float64) HandLandmarks {
	h := FistLandmarks(Right)
	h.Points[ThumbIP] = Point3D{X: 0.48, Y: 0.56}
	h.Points[ThumbTip] = Point3D{X: 0.50, Y: 0.50}
	h.Points[IndexDIP] = Point3D{X: 0.50 + distance, Y: 0.45}
	h.Points[IndexTip] = Point3D{X: 0.50 + distance, Y: 0.50}
	return h
}

// PointAtLandmarks returns a right hand pointing with the index tip at image x, the seek gesture.
func PointAtLandmarks(x float64) HandLandmarks {
	h := RaisedFingersLandmarks(Right, 1)
	h.Points[IndexDIP].X = x
	h.Points[IndexTip].X = x
	return h
}
