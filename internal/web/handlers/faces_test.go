package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/et-316/ex-file-eraser/internal/face"
	"github.com/et-316/ex-file-eraser/internal/session"
)

func testCandidate(id string, quality face.Quality, embedding []float32) face.Face {
	return face.Face{
		ID:          id,
		SourceImage: "photo-" + id,
		Region:      face.Region{X: 10, Y: 10, Width: 90, Height: 90},
		Confidence:  0.9,
		Quality:     quality,
		Embedding:   embedding,
	}
}

func TestFacesList(t *testing.T) {
	store, run := newTestRun(t)
	run.SetCandidates([]face.Face{
		testCandidate("f1", face.QualityHigh, []float32{1, 0, 0}),
		testCandidate("f2", face.QualityLow, []float32{0, 1, 0}),
	})

	handler := NewFacesHandler(store, NewIndexSet())
	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/runs/"+run.ID+"/faces", nil),
		map[string]string{"id": run.ID},
	)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Candidates []candidateResponse `json:"candidates"`
	}
	parseJSONResponse(t, recorder, &result)
	if len(result.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(result.Candidates))
	}
	if result.Candidates[0].ID != "f1" || result.Candidates[0].Quality != "high" {
		t.Errorf("unexpected first candidate: %+v", result.Candidates[0])
	}
	if result.Candidates[0].Score != 300.9 {
		t.Errorf("score = %v, want 300.9", result.Candidates[0].Score)
	}
}

func TestFacesSimilar(t *testing.T) {
	store, run := newTestRun(t)
	candidates := []face.Face{
		testCandidate("f1", face.QualityHigh, []float32{1, 0, 0}),
		testCandidate("f2", face.QualityHigh, []float32{0.9, 0.1, 0}),
		testCandidate("f3", face.QualityHigh, []float32{0, 0, 1}),
	}
	run.SetCandidates(candidates)

	indexes := NewIndexSet()
	idx := session.NewCandidateIndex()
	if err := idx.Build(candidates); err != nil {
		t.Fatalf("failed to build index: %v", err)
	}
	indexes.Set(run.ID, idx)

	handler := NewFacesHandler(store, indexes)
	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/runs/"+run.ID+"/faces/f1/similar?limit=3", nil),
		map[string]string{"id": run.ID, "faceId": "f1"},
	)
	recorder := httptest.NewRecorder()
	handler.Similar(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Similar []struct {
			ID       string  `json:"id"`
			Distance float64 `json:"distance"`
		} `json:"similar"`
	}
	parseJSONResponse(t, recorder, &result)
	if len(result.Similar) == 0 {
		t.Fatal("expected at least one neighbor")
	}
	if result.Similar[0].ID != "f2" {
		t.Errorf("nearest neighbor = %s, want f2", result.Similar[0].ID)
	}
	for _, n := range result.Similar {
		if n.ID == "f1" {
			t.Error("the query face must not appear in its own neighbors")
		}
	}
}

func TestFacesSimilarUnknownFace(t *testing.T) {
	store, run := newTestRun(t)
	run.SetCandidates([]face.Face{testCandidate("f1", face.QualityHigh, []float32{1, 0, 0})})

	handler := NewFacesHandler(store, NewIndexSet())
	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/runs/"+run.ID+"/faces/ghost/similar", nil),
		map[string]string{"id": run.ID, "faceId": "ghost"},
	)
	recorder := httptest.NewRecorder()
	handler.Similar(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestFacesSimilarWithoutIndex(t *testing.T) {
	store, run := newTestRun(t)
	run.SetCandidates([]face.Face{testCandidate("f1", face.QualityHigh, []float32{1, 0, 0})})

	handler := NewFacesHandler(store, NewIndexSet())
	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/runs/"+run.ID+"/faces/f1/similar", nil),
		map[string]string{"id": run.ID, "faceId": "f1"},
	)
	recorder := httptest.NewRecorder()
	handler.Similar(recorder, req)

	assertStatusCode(t, recorder, http.StatusConflict)
}
