// Package api implements the JSON endpoints of the status server.
//
// Every response carries live pipeline or history state, so none of it may be
// cached by the browser polling the status page.
package api

import (
	"encoding/json"
	"net/http"
)

// errorBody is the shape of every non-2xx response: {"error": "..."}.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError answers with status and a short message meant for the status page.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
