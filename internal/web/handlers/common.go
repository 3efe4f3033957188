package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/et-316/ex-file-eraser/internal/session"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// getRun resolves the {id} URL parameter against the store. On failure it
// writes the error response and returns nil.
func getRun(w http.ResponseWriter, r *http.Request, store session.Store) *session.Run {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		respondError(w, http.StatusBadRequest, "missing run ID")
		return nil
	}
	run, err := store.Get(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found")
		return nil
	}
	return run
}

// RunPersister snapshots runs to durable storage. Nil when the server runs
// without a database.
type RunPersister interface {
	SaveRun(ctx context.Context, run *session.Run) error
	DeleteRun(ctx context.Context, runID string) error
}

// persistRun saves a run snapshot if persistence is configured. Failures are
// logged, not surfaced; the in-memory working set stays authoritative.
func persistRun(ctx context.Context, persister RunPersister, run *session.Run) {
	if persister == nil {
		return
	}
	if err := persister.SaveRun(ctx, run); err != nil {
		log.Printf("failed to persist run %s: %v", sanitizeForLog(run.ID), err)
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
