package server

import (
	"fmt"
	"net/http"
	"time"
)

// streamInterval paces the preview at about 15 frames per second.
const streamInterval = 66 * time.Millisecond

// FrameSource provides the most recent JPEG-encoded camera frame.
// *app.CameraSource implements it once preview is enabled.
type FrameSource interface {
	LatestJPEG() ([]byte, time.Time)
}

// StreamHandler serves MJPEG frames from the camera.
type StreamHandler struct {
	frames FrameSource
}

// NewStreamHandler creates a new StreamHandler over frames.
func NewStreamHandler(frames FrameSource) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams each new frame as one part of a multipart response until
// the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var sent time.Time
	for {
		if jpeg, at := h.frames.LatestJPEG(); len(jpeg) > 0 && at.After(sent) {
			sent = at

			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
			if _, err := w.Write(jpeg); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
