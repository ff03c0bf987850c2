// Package api provides the HTTP binding for the orchestrator.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mkraev/switchboard/internal/orchestrator"
	"github.com/mkraev/switchboard/internal/store"
)

// Handler provides common handler dependencies.
type Handler struct {
	orch *orchestrator.Orchestrator
	repo store.Repository
}

// NewHandler creates a new Handler.
func NewHandler(orch *orchestrator.Orchestrator, repo store.Repository) *Handler {
	return &Handler{orch: orch, repo: repo}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a request body into v. An empty body is not an
// error; the caller's defaults stand.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
