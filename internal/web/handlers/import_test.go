package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/et-316/ex-file-eraser/internal/photolib"
)

type fakeLister struct {
	assets        []photolib.Asset
	err           error
	includeHidden bool
}

func (f *fakeLister) ListAssets(_ context.Context, includeHidden bool) ([]photolib.Asset, error) {
	f.includeHidden = includeHidden
	return f.assets, f.err
}

func TestImportFromLibrary(t *testing.T) {
	store, run := newTestRun(t)
	lister := &fakeLister{assets: []photolib.Asset{
		{Identifier: "asset-1", URI: "file:///photos/IMG_0001.jpg"},
		{Identifier: "asset-2", URI: "file:///photos/IMG_0002.jpg"},
	}}
	handler := NewImportHandler(store, lister, nil)

	req := requestWithChiParams(
		httptest.NewRequest("POST", "/api/v1/runs/"+run.ID+"/import", strings.NewReader(`{"include_hidden":true}`)),
		map[string]string{"id": run.ID},
	)
	recorder := httptest.NewRecorder()
	handler.Import(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if !lister.includeHidden {
		t.Error("include_hidden was not forwarded to the library")
	}

	var result struct {
		Imported int `json:"imported"`
		Photos   int `json:"photos"`
	}
	parseJSONResponse(t, recorder, &result)
	if result.Imported != 2 || result.Photos != 2 {
		t.Errorf("unexpected import result: %+v", result)
	}

	photos := run.Photos()
	if photos[0].NativeAssetID != "asset-1" || photos[1].NativeAssetID != "asset-2" {
		t.Error("imported photos must carry their native asset identifiers")
	}
}

func TestImportWithoutLibrary(t *testing.T) {
	store, run := newTestRun(t)
	handler := NewImportHandler(store, nil, nil)

	req := requestWithChiParams(
		httptest.NewRequest("POST", "/api/v1/runs/"+run.ID+"/import", nil),
		map[string]string{"id": run.ID},
	)
	recorder := httptest.NewRecorder()
	handler.Import(recorder, req)

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	assertJSONError(t, recorder, "photo library is not configured")
}

func TestImportLibraryFailure(t *testing.T) {
	store, run := newTestRun(t)
	lister := &fakeLister{err: errors.New("bridge not responding")}
	handler := NewImportHandler(store, lister, nil)

	req := requestWithChiParams(
		httptest.NewRequest("POST", "/api/v1/runs/"+run.ID+"/import", nil),
		map[string]string{"id": run.ID},
	)
	recorder := httptest.NewRecorder()
	handler.Import(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadGateway)
}
