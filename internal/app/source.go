package app

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
)

// Source yields one frame of hand landmarks per call.
// *detector.Replay and *CameraSource implement it.
type Source interface {
	Next() (detector.Frame, error)
	Close() error
}

type opener interface {
	Open() error
}

// idler is implemented by sources that can tell when nothing is happening in
// front of the camera.
type idler interface {
	Idle() bool
}

type pacer interface {
	SetFPS(fps int)
}

// CameraSource reads frames from a camera and runs hand detection on them.
// With a motion gate, frames taken while the scene is still skip detection
// and yield no hands.
type CameraSource struct {
	camera   capture.Camera
	detector detector.Detector
	gate     *capture.MotionGate
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	idle    bool
	preview bool
	jpeg    []byte
	jpegAt  time.Time
}

// NewCameraSource creates a CameraSource. gate may be nil.
func NewCameraSource(cam capture.Camera, det detector.Detector, gate *capture.MotionGate, logger *zap.Logger) *CameraSource {
	return &CameraSource{
		camera:   cam,
		detector: det,
		gate:     gate,
		logger:   logger.Named("camera"),
		now:      time.Now,
	}
}

// Open opens the camera.
func (s *CameraSource) Open() error {
	if s.camera.IsOpen() {
		return nil
	}
	return s.camera.Open()
}

// Next captures a frame and returns the hands found in it, stamped with the
// capture time.
func (s *CameraSource) Next() (detector.Frame, error) {
	mat, err := s.camera.ReadFrame()
	if err != nil {
		return detector.Frame{}, fmt.Errorf("read frame: %w", err)
	}
	defer mat.Close()

	ts := s.now()
	s.encodePreview(mat, ts)

	if s.gate != nil {
		active, changed := s.gate.Observe(mat, ts)
		if changed {
			s.logger.Debug("motion gate changed", zap.Bool("active", active))
		}
		s.mu.Lock()
		s.idle = !active
		s.mu.Unlock()
		if !active {
			return detector.Frame{Timestamp: ts}, nil
		}
	}

	hands, err := s.detector.Detect(mat)
	if err != nil {
		return detector.Frame{}, fmt.Errorf("detect hands: %w", err)
	}
	return detector.Frame{Hands: hands, Timestamp: ts}, nil
}

// EnablePreview keeps a JPEG copy of every captured frame for LatestJPEG.
func (s *CameraSource) EnablePreview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = true
}

// LatestJPEG returns the last captured frame and its capture time. It is
// empty until preview is enabled and a frame has been read.
func (s *CameraSource) LatestJPEG() ([]byte, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jpeg, s.jpegAt
}

func (s *CameraSource) encodePreview(mat *gocv.Mat, ts time.Time) {
	s.mu.Lock()
	enabled := s.preview
	s.mu.Unlock()
	if !enabled {
		return
	}

	buf, err := gocv.IMEncode(".jpg", *mat)
	if err != nil {
		s.logger.Debug("encode preview", zap.Error(err))
		return
	}
	jpeg := bytes.Clone(buf.GetBytes())
	buf.Close()

	s.mu.Lock()
	s.jpeg, s.jpegAt = jpeg, ts
	s.mu.Unlock()
}

// Idle reports whether the motion gate is closed.
func (s *CameraSource) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

// SetFPS forwards the tick rate to the camera.
func (s *CameraSource) SetFPS(fps int) {
	s.camera.SetFPS(fps)
}

// Close releases the camera, the detector and the motion gate.
func (s *CameraSource) Close() error {
	if s.gate != nil {
		s.gate.Close()
	}
	return errors.Join(s.camera.Close(), s.detector.Close())
}
