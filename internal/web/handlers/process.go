package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/et-316/ex-file-eraser/internal/config"
	"github.com/et-316/ex-file-eraser/internal/face"
	"github.com/et-316/ex-file-eraser/internal/match"
	"github.com/et-316/ex-file-eraser/internal/pipeline"
	"github.com/et-316/ex-file-eraser/internal/session"
)

// IndexSet holds the per-run candidate indexes built after detection.
type IndexSet struct {
	mu    sync.RWMutex
	byRun map[string]*session.CandidateIndex
}

// NewIndexSet creates an empty index set.
func NewIndexSet() *IndexSet {
	return &IndexSet{byRun: make(map[string]*session.CandidateIndex)}
}

// Set stores the index for a run, replacing any previous one.
func (s *IndexSet) Set(runID string, idx *session.CandidateIndex) {
	s.mu.Lock()
	s.byRun[runID] = idx
	s.mu.Unlock()
}

// Get returns the index for a run, or nil.
func (s *IndexSet) Get(runID string) *session.CandidateIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byRun[runID]
}

// Delete drops the index for a run.
func (s *IndexSet) Delete(runID string) {
	s.mu.Lock()
	delete(s.byRun, runID)
	s.mu.Unlock()
}

// ProcessHandler runs the two batch passes over a run: face detection and
// the per-photo match decision. Both run as async jobs with SSE progress.
type ProcessHandler struct {
	store        session.Store
	orchestrator *pipeline.Orchestrator
	policy       config.PolicyConfig
	jobManager   *JobManager
	indexes      *IndexSet
	persister    RunPersister
}

// NewProcessHandler creates a new process handler.
func NewProcessHandler(
	store session.Store,
	orchestrator *pipeline.Orchestrator,
	policy config.PolicyConfig,
	jobManager *JobManager,
	indexes *IndexSet,
	persister RunPersister,
) *ProcessHandler {
	return &ProcessHandler{
		store:        store,
		orchestrator: orchestrator,
		policy:       policy,
		jobManager:   jobManager,
		indexes:      indexes,
		persister:    persister,
	}
}

// Detect starts the detection batch over the run's photos.
func (h *ProcessHandler) Detect(w http.ResponseWriter, r *http.Request) {
	run := getRun(w, r, h.store)
	if run == nil {
		return
	}
	if run.Count() == 0 {
		respondError(w, http.StatusBadRequest, "run has no photos")
		return
	}

	job, ctx, err := h.jobManager.StartJob(run.ID, JobKindDetect)
	if errors.Is(err, ErrJobActive) {
		respondError(w, http.StatusConflict, "run already has an active job")
		return
	}

	go h.runDetect(ctx, job, run)

	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID()})
}

func (h *ProcessHandler) runDetect(ctx context.Context, job *Job, run *session.Run) {
	job.SetRunning()

	photos := run.Photos()
	images := make([]pipeline.Image, len(photos))
	for i, p := range photos {
		images[i] = pipeline.Image{Ref: p.ID, Data: p.Data}
	}

	results, err := h.orchestrator.ProcessBatch(ctx, images, job.SetProgress)

	// Partial results from a cancelled batch are still valid per-photo.
	for _, result := range results {
		run.SetFaces(result.ImageRef, result.Faces)
	}
	rebuildCandidates(run, h.policy.Dedup, h.indexes)
	persistRun(context.Background(), h.persister, run)

	if err != nil {
		// Cancellation already set the terminal status and event.
		log.Printf("detection batch for run %s stopped: %v", sanitizeForLog(run.ID), err)
		return
	}

	job.Complete(map[string]any{
		"photos":     len(results),
		"candidates": len(run.Candidates()),
	})
}

// rebuildCandidates recomputes the deduplicated candidate set and the
// similarity index from the run's current faces. Shared between the
// detection pass and snapshot restore, since both leave the run with faces
// but no derived state.
func rebuildCandidates(run *session.Run, dedup config.DedupPolicyConfig, indexes *IndexSet) {
	var all []face.Face
	for _, p := range run.Photos() {
		all = append(all, p.Faces...)
	}

	representatives := match.Deduplicate(all, match.DedupPolicyFromConfig(dedup))
	ranked := match.RankForPresentation(representatives)
	run.SetCandidates(ranked)

	idx := session.NewCandidateIndex()
	if err := idx.Build(ranked); err != nil {
		log.Printf("failed to build candidate index for run %s: %v", sanitizeForLog(run.ID), err)
		return
	}
	indexes.Set(run.ID, idx)
}

type selectRequest struct {
	FaceID string `json:"face_id"`
	Strict bool   `json:"strict"`
	Label  string `json:"label,omitempty"`
}

// Select chooses the reference identity and starts the matching pass. Flags
// are recomputed from scratch on every selection.
func (h *ProcessHandler) Select(w http.ResponseWriter, r *http.Request) {
	run := getRun(w, r, h.store)
	if run == nil {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.FaceID == "" {
		respondError(w, http.StatusBadRequest, "face_id is required")
		return
	}

	reference, err := run.SelectReference(req.FaceID)
	if errors.Is(err, session.ErrUnknownCandidate) {
		respondError(w, http.StatusNotFound, "face is not one of the run's candidates")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to select reference")
		return
	}
	if req.Label != "" {
		run.SetLabel(req.Label)
	}

	job, ctx, err := h.jobManager.StartJob(run.ID, JobKindMatch)
	if errors.Is(err, ErrJobActive) {
		respondError(w, http.StatusConflict, "run already has an active job")
		return
	}

	go h.runMatch(ctx, job, run, reference, req.Strict)

	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID()})
}

func (h *ProcessHandler) runMatch(ctx context.Context, job *Job, run *session.Run, reference face.Face, strict bool) {
	job.SetRunning()

	policy := match.PolicyFromConfig(h.policy.Match, strict)
	photos := run.Photos()
	batch := make([]pipeline.PhotoFaces, len(photos))
	for i, p := range photos {
		batch[i] = pipeline.PhotoFaces{PhotoID: p.ID, Faces: p.Faces}
	}

	flags, err := pipeline.FlagBatch(ctx, &reference, batch, policy, job.SetProgress)
	if err != nil {
		// A cancelled pass leaves the previous flags untouched; flags are
		// applied only once per completed pass.
		log.Printf("match pass for run %s stopped: %v", sanitizeForLog(run.ID), err)
		return
	}

	if err := run.SetFlags(flags); err != nil {
		job.Fail("working set changed during the match pass")
		return
	}
	persistRun(context.Background(), h.persister, run)

	flagged := 0
	for _, f := range flags {
		if f {
			flagged++
		}
	}
	job.Complete(map[string]any{
		"photos":  len(flags),
		"flagged": flagged,
	})
}

// JobStatus returns a job snapshot.
func (h *ProcessHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams job progress via SSE.
func (h *ProcessHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			if job := h.jobManager.GetJob(id); job != nil {
				return job
			}
			return nil
		},
		func(j SSEJob) any {
			return j.(*Job).Snapshot()
		},
	)
}

// Cancel cancels a running job.
func (h *ProcessHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	if isJobTerminal(job.GetStatus()) {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]string{"cancelled": job.ID()})
}

func (h *ProcessHandler) lookup(w http.ResponseWriter, r *http.Request) *Job {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}
	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}
