package handlers

import (
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/et-316/ex-file-eraser/internal/session"
)

// maxUploadSize caps a run-creation upload at 512 MB.
const maxUploadSize = 512 << 20

// RunsHandler handles run lifecycle endpoints.
type RunsHandler struct {
	store     session.Store
	persister RunPersister
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(store session.Store, persister RunPersister) *RunsHandler {
	return &RunsHandler{store: store, persister: persister}
}

// readUploadedPhotos reads multipart files into session photos.
func readUploadedPhotos(files []*multipart.FileHeader) ([]session.Photo, error) {
	var photos []session.Photo
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, err
		}
		photos = append(photos, session.Photo{
			SourceName: filepath.Base(fileHeader.Filename),
			Data:       data,
		})
	}
	return photos, nil
}

// Create starts a run from multipart photo uploads. Photos are optional;
// an empty run can be filled via the library import endpoint.
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	var photos []session.Photo
	if r.MultipartForm != nil {
		files := r.MultipartForm.File["photos"]
		uploaded, err := readUploadedPhotos(files)
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read uploaded photos")
			return
		}
		photos = uploaded
	}

	run, err := h.store.Create(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create run")
		return
	}
	for _, p := range photos {
		run.AddPhoto(p)
	}
	persistRun(r.Context(), h.persister, run)
	log.Printf("created run %s with %d photos", sanitizeForLog(run.ID), run.Count())

	respondJSON(w, http.StatusCreated, map[string]any{
		"run_id": run.ID,
		"photos": run.Count(),
	})
}

// Get returns a run summary.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run := getRun(w, r, h.store)
	if run == nil {
		return
	}

	flagged := 0
	for _, p := range run.Photos() {
		if p.Flagged {
			flagged++
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"run_id":     run.ID,
		"label":      run.Label(),
		"created_at": run.CreatedAt,
		"photos":     run.Count(),
		"candidates": len(run.Candidates()),
		"flagged":    flagged,
	})
}

// Delete discards a run and its persisted snapshot.
func (h *RunsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	run := getRun(w, r, h.store)
	if run == nil {
		return
	}

	if err := h.store.Delete(r.Context(), run.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete run")
		return
	}
	if h.persister != nil {
		if err := h.persister.DeleteRun(r.Context(), run.ID); err != nil {
			log.Printf("failed to delete persisted run %s: %v", sanitizeForLog(run.ID), err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"deleted": run.ID})
}
