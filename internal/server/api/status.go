package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
)

// Controller exposes the pipeline state. *app.App implements it.
type Controller interface {
	Snapshot() app.Snapshot
	SetEnabled(enabled bool) error
}

// StatusHandler serves /api/status.
type StatusHandler struct {
	ctl Controller
}

// NewStatusHandler creates a StatusHandler for ctl.
func NewStatusHandler(ctl Controller) *StatusHandler {
	return &StatusHandler{ctl: ctl}
}

type updateStatusRequest struct {
	Enabled *bool `json:"enabled"`
}

// ServeHTTP returns the current snapshot on GET and toggles detection on PUT.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.ctl.Snapshot())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// update handles PUT /api/status with a body of {"enabled": bool}.
func (h *StatusHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if err := h.ctl.SetEnabled(*req.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save detection toggle")
		return
	}

	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}
