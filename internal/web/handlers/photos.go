package handlers

import (
	"net/http"

	"github.com/et-316/ex-file-eraser/internal/session"
)

// PhotosHandler exposes a run's photos and their flags.
type PhotosHandler struct {
	store session.Store
}

// NewPhotosHandler creates a new photos handler.
func NewPhotosHandler(store session.Store) *PhotosHandler {
	return &PhotosHandler{store: store}
}

type photoResponse struct {
	ID            string `json:"id"`
	SourceName    string `json:"source_name"`
	NativeAssetID string `json:"native_asset_id,omitempty"`
	Flagged       bool   `json:"flagged"`
	Faces         int    `json:"faces"`
}

// List returns the working set in insertion order with decision flags. A
// source query parameter narrows the listing to photos whose source name
// matches after normalization, so "Vikend-u-more.jpg" finds "vikend u more.jpg".
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	run := getRun(w, r, h.store)
	if run == nil {
		return
	}

	photos := run.Photos()
	if source := r.URL.Query().Get("source"); source != "" {
		photos = run.FindBySource(source)
	}
	out := make([]photoResponse, len(photos))
	flagged := 0
	for i, p := range photos {
		out[i] = photoResponse{
			ID:            p.ID,
			SourceName:    p.SourceName,
			NativeAssetID: p.NativeAssetID,
			Flagged:       p.Flagged,
			Faces:         len(p.Faces),
		}
		if p.Flagged {
			flagged++
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"photos":  out,
		"flagged": flagged,
	})
}
