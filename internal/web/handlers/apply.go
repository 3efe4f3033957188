package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/et-316/ex-file-eraser/internal/session"
	"github.com/et-316/ex-file-eraser/internal/workflow"
)

// ApplyHandler drives the destructive hide/delete workflow for a run.
type ApplyHandler struct {
	store     session.Store
	library   workflow.Library
	persister RunPersister

	mu      sync.Mutex
	runners map[string]*workflow.Runner
}

// NewApplyHandler creates a new apply handler.
func NewApplyHandler(store session.Store, library workflow.Library, persister RunPersister) *ApplyHandler {
	return &ApplyHandler{
		store:     store,
		library:   library,
		persister: persister,
		runners:   make(map[string]*workflow.Runner),
	}
}

// runner returns the run's workflow runner, creating it on first use. One
// runner per run keeps the single-outstanding-request rule per working set.
func (h *ApplyHandler) runner(run *session.Run) *workflow.Runner {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.runners[run.ID]; ok {
		return r
	}
	r := workflow.NewRunner(h.library, run)
	h.runners[run.ID] = r
	return r
}

type applyRequest struct {
	Action string `json:"action"`
}

type applyResponse struct {
	Action           string   `json:"action"`
	State            string   `json:"state"`
	Requested        int      `json:"requested"`
	Affected         int      `json:"affected"`
	NoEligibleAssets bool     `json:"no_eligible_assets"`
	RemovedPhotoIDs  []string `json:"removed_photo_ids,omitempty"`
}

// Apply runs a hide or delete request over the run's flagged photos.
func (h *ApplyHandler) Apply(w http.ResponseWriter, r *http.Request) {
	if h.library == nil {
		respondError(w, http.StatusServiceUnavailable, "photo library is not configured")
		return
	}

	run := getRun(w, r, h.store)
	if run == nil {
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	var action workflow.Action
	switch req.Action {
	case "hide":
		action = workflow.ActionHide
	case "delete":
		action = workflow.ActionDelete
	default:
		respondError(w, http.StatusBadRequest, "action must be 'hide' or 'delete'")
		return
	}

	targets := make([]workflow.Target, 0, run.Count())
	for _, p := range run.Photos() {
		targets = append(targets, workflow.Target{
			PhotoID:       p.ID,
			NativeAssetID: p.NativeAssetID,
			Flagged:       p.Flagged,
		})
	}

	runner := h.runner(run)
	outcome, err := runner.Apply(r.Context(), action, targets)

	switch {
	case errors.Is(err, workflow.ErrBusy):
		respondError(w, http.StatusConflict, "another library request is in progress")
		return
	case errors.Is(err, workflow.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "photo library permission denied")
		return
	case err != nil:
		var mutErr *workflow.MutationError
		if errors.As(err, &mutErr) {
			respondError(w, http.StatusBadGateway, mutErr.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	persistRun(context.Background(), h.persister, run)
	log.Printf("applied %s to run %s: requested=%d affected=%d",
		action, sanitizeForLog(run.ID), outcome.Requested, outcome.Affected)

	respondJSON(w, http.StatusOK, applyResponse{
		Action:           string(outcome.Action),
		State:            string(runner.State()),
		Requested:        outcome.Requested,
		Affected:         outcome.Affected,
		NoEligibleAssets: outcome.NoEligibleAssets,
		RemovedPhotoIDs:  outcome.RemovedPhotoIDs,
	})
}
