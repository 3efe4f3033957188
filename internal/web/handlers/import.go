package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/et-316/ex-file-eraser/internal/photolib"
	"github.com/et-316/ex-file-eraser/internal/session"
)

// AssetLister is the subset of the photo library client the import needs.
type AssetLister interface {
	ListAssets(ctx context.Context, includeHidden bool) ([]photolib.Asset, error)
}

// ImportHandler ingests platform library assets into a run.
type ImportHandler struct {
	store     session.Store
	library   AssetLister
	persister RunPersister
}

// NewImportHandler creates a new import handler.
func NewImportHandler(store session.Store, library AssetLister, persister RunPersister) *ImportHandler {
	return &ImportHandler{store: store, library: library, persister: persister}
}

type importRequest struct {
	IncludeHidden bool `json:"include_hidden"`
}

// Import lists the platform library and adds each asset to the run. Imported
// photos carry the native identifier that makes them eligible for hide and
// delete later.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	if h.library == nil {
		respondError(w, http.StatusServiceUnavailable, "photo library is not configured")
		return
	}

	run := getRun(w, r, h.store)
	if run == nil {
		return
	}

	var req importRequest
	if r.Body != nil {
		// An empty body means defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	assets, err := h.library.ListAssets(r.Context(), req.IncludeHidden)
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to list library assets")
		return
	}

	imported := 0
	for _, asset := range assets {
		run.AddPhoto(session.Photo{
			SourceName:    asset.URI,
			NativeAssetID: asset.Identifier,
		})
		imported++
	}
	persistRun(r.Context(), h.persister, run)
	log.Printf("imported %d library assets into run %s", imported, sanitizeForLog(run.ID))

	respondJSON(w, http.StatusOK, map[string]any{
		"imported": imported,
		"photos":   run.Count(),
	})
}
