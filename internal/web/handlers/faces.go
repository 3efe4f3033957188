package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/et-316/ex-file-eraser/internal/face"
	"github.com/et-316/ex-file-eraser/internal/session"
)

// defaultSimilarLimit caps the similar-candidates lookup.
const defaultSimilarLimit = 5

// FacesHandler exposes a run's deduplicated candidate faces.
type FacesHandler struct {
	store   session.Store
	indexes *IndexSet
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(store session.Store, indexes *IndexSet) *FacesHandler {
	return &FacesHandler{store: store, indexes: indexes}
}

type candidateResponse struct {
	ID           string      `json:"id"`
	SourceImage  string      `json:"source_image"`
	Region       face.Region `json:"region"`
	Confidence   float64     `json:"confidence"`
	Quality      string      `json:"quality"`
	Score        float64     `json:"score"`
	HasEmbedding bool        `json:"has_embedding"`
}

func toCandidateResponse(f face.Face) candidateResponse {
	return candidateResponse{
		ID:           f.ID,
		SourceImage:  f.SourceImage,
		Region:       f.Region,
		Confidence:   f.Confidence,
		Quality:      f.Quality.String(),
		Score:        f.PresentationScore(),
		HasEmbedding: f.HasEmbedding(),
	}
}

// List returns the candidates in presentation order, best first.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	run := getRun(w, r, h.store)
	if run == nil {
		return
	}

	candidates := run.Candidates()
	out := make([]candidateResponse, len(candidates))
	for i, f := range candidates {
		out[i] = toCandidateResponse(f)
	}
	respondJSON(w, http.StatusOK, map[string]any{"candidates": out})
}

// Similar returns the index neighbors of one candidate face.
func (h *FacesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	run := getRun(w, r, h.store)
	if run == nil {
		return
	}

	faceID := chi.URLParam(r, "faceId")
	var query *face.Face
	for _, f := range run.Candidates() {
		if f.ID == faceID {
			query = &f
			break
		}
	}
	if query == nil {
		respondError(w, http.StatusNotFound, "face is not one of the run's candidates")
		return
	}
	if !query.HasEmbedding() {
		respondError(w, http.StatusBadRequest, "face has no embedding to search with")
		return
	}

	idx := h.indexes.Get(run.ID)
	if idx == nil {
		respondError(w, http.StatusConflict, "run has no candidate index yet")
		return
	}

	limit := defaultSimilarLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	neighbors, distances, err := idx.Search(query.Embedding, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}

	type neighborResponse struct {
		candidateResponse
		Distance float64 `json:"distance"`
	}
	out := make([]neighborResponse, 0, len(neighbors))
	for i, f := range neighbors {
		if f.ID == faceID {
			continue // the query face is its own nearest neighbor
		}
		out = append(out, neighborResponse{
			candidateResponse: toCandidateResponse(f),
			Distance:          distances[i],
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"similar": out})
}
