package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/store"
)

// DefaultHistoryLimit is the number of dispatches returned when no limit is given.
const DefaultHistoryLimit = 50

// HistoryHandler serves the dispatch history.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a HistoryHandler with the given store.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type listHistoryResponse struct {
	Dispatches []*store.Dispatch `json:"dispatches"`
}

// ServeHTTP handles GET /api/history?limit=N, newest first.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	dispatches, err := h.store.Dispatches().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}
	if dispatches == nil {
		dispatches = []*store.Dispatch{}
	}

	writeJSON(w, http.StatusOK, listHistoryResponse{Dispatches: dispatches})
}
