package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/et-316/ex-file-eraser/internal/face"
	"github.com/et-316/ex-file-eraser/internal/session"
)

func TestPhotosList(t *testing.T) {
	store, run := newTestRun(t)
	id1 := run.AddPhoto(session.Photo{SourceName: "a.jpg", NativeAssetID: "asset-1", Flagged: true})
	run.AddPhoto(session.Photo{SourceName: "b.jpg"})
	run.SetFaces(id1, []face.Face{testCandidate("f1", face.QualityHigh, nil)})

	handler := NewPhotosHandler(store)
	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/runs/"+run.ID+"/photos", nil),
		map[string]string{"id": run.ID},
	)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Photos  []photoResponse `json:"photos"`
		Flagged int             `json:"flagged"`
	}
	parseJSONResponse(t, recorder, &result)

	if len(result.Photos) != 2 || result.Flagged != 1 {
		t.Fatalf("unexpected listing: %+v", result)
	}
	first := result.Photos[0]
	if first.SourceName != "a.jpg" || !first.Flagged || first.Faces != 1 || first.NativeAssetID != "asset-1" {
		t.Errorf("unexpected first photo: %+v", first)
	}
	if result.Photos[1].Flagged {
		t.Error("second photo must not be flagged")
	}
}

func TestPhotosListFilterBySource(t *testing.T) {
	store, run := newTestRun(t)
	run.AddPhoto(session.Photo{SourceName: "víkend-u-moře.jpg"})
	run.AddPhoto(session.Photo{SourceName: "b.jpg"})

	handler := NewPhotosHandler(store)
	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/runs/"+run.ID+"/photos?source=vikend+u+more.jpg", nil),
		map[string]string{"id": run.ID},
	)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Photos []photoResponse `json:"photos"`
	}
	parseJSONResponse(t, recorder, &result)

	if len(result.Photos) != 1 {
		t.Fatalf("got %d photos, want 1", len(result.Photos))
	}
	if result.Photos[0].SourceName != "víkend-u-moře.jpg" {
		t.Errorf("unexpected photo: %+v", result.Photos[0])
	}
}
