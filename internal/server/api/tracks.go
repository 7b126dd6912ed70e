package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/library"
	"github.com/ayusman/mudra/internal/store"
)

// Library lists and rescans tracks. *library.Library implements it.
type Library interface {
	Tracks() ([]*store.Track, error)
	Scan() (library.ScanResult, error)
}

// TrackHandler handles HTTP requests for library tracks.
type TrackHandler struct {
	library Library
}

// NewTrackHandler creates a TrackHandler over lib.
func NewTrackHandler(lib Library) *TrackHandler {
	return &TrackHandler{library: lib}
}

type listTracksResponse struct {
	Tracks []*store.Track `json:"tracks"`
}

// ServeHTTP routes /api/tracks and /api/tracks/rescan.
func (h *TrackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tracks")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
	case "rescan":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.rescan(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// list handles GET /api/tracks.
func (h *TrackHandler) list(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.library.Tracks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tracks")
		return
	}
	if tracks == nil {
		tracks = []*store.Track{}
	}
	writeJSON(w, http.StatusOK, listTracksResponse{Tracks: tracks})
}

// rescan handles POST /api/tracks/rescan.
func (h *TrackHandler) rescan(w http.ResponseWriter, r *http.Request) {
	result, err := h.library.Scan()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to scan library")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
