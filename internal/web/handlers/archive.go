package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/et-316/ex-file-eraser/internal/archive"
	"github.com/et-316/ex-file-eraser/internal/session"
)

// ArchiveHandler streams a run's photos as a zip download.
type ArchiveHandler struct {
	store session.Store
}

// NewArchiveHandler creates a new archive handler.
func NewArchiveHandler(store session.Store) *ArchiveHandler {
	return &ArchiveHandler{store: store}
}

// Download writes the run's photos as a zip with clean/ and archived/ folders.
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	run := getRun(w, r, h.store)
	if run == nil {
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "run-"+run.ID+".zip"))

	written, err := archive.WriteRun(w, run.Photos())
	if err != nil {
		// headers already sent, client gets a truncated archive
		log.Printf("could not write archive for run %s: %v", sanitizeForLog(run.ID), err)
		return
	}
	log.Printf("archived %d photos for run %s", written, sanitizeForLog(run.ID))
}
