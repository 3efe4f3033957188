package handlers

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/et-316/ex-file-eraser/internal/config"
	"github.com/et-316/ex-file-eraser/internal/detect"
	"github.com/et-316/ex-file-eraser/internal/face"
	"github.com/et-316/ex-file-eraser/internal/pipeline"
	"github.com/et-316/ex-file-eraser/internal/session"
)

// cannedDetector returns the same detections for every image.
type cannedDetector struct {
	detections []detect.Detection
}

func (d *cannedDetector) Detect(_ context.Context, _ []byte) ([]detect.Detection, error) {
	return d.detections, nil
}

// cannedEmbedder returns the same vector for every crop.
type cannedEmbedder struct {
	vector []float32
}

func (e *cannedEmbedder) Embed(_ context.Context, _ []byte) ([]float32, error) {
	return e.vector, nil
}

func encodeTestImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func testPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		Match: config.MatchPolicyConfig{
			BaseThreshold:       0.6,
			StrictThreshold:     0.55,
			HighQualityBoost:    0.05,
			MediumQualityBoost:  0.02,
			ConfidenceBoost:     0.03,
			ConfidenceFloor:     0.7,
			FallbackTolerancePx: 100,
		},
		Dedup: config.DedupPolicyConfig{
			SimilarityThreshold: 0.8,
			FallbackTolerancePx: 50,
		},
		Detect: config.DetectPolicyConfig{
			MinConfidence:      0.5,
			FallbackConfidence: 0.5,
			WholeImageFallback: true,
		},
	}
}

func newTestProcessHandler(t *testing.T, store session.Store) (*ProcessHandler, *JobManager, *IndexSet) {
	t.Helper()
	detector := &cannedDetector{detections: []detect.Detection{
		{Label: "face", Confidence: 0.9, Box: face.Region{X: 10, Y: 10, Width: 120, Height: 120}},
	}}
	embedder := &cannedEmbedder{vector: []float32{1, 0, 0}}
	orchestrator := pipeline.NewOrchestrator(detector, embedder, testPolicy().Detect)
	jobManager := NewJobManager()
	indexes := NewIndexSet()
	handler := NewProcessHandler(store, orchestrator, testPolicy(), jobManager, indexes, nil)
	return handler, jobManager, indexes
}

// waitForJob polls until the job reaches a terminal status.
func waitForJob(t *testing.T, manager *JobManager, jobID string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job := manager.GetJob(jobID)
		if job == nil {
			t.Fatalf("job %s disappeared", jobID)
		}
		if isJobTerminal(job.GetStatus()) {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", jobID)
	return nil
}

func TestDetectEmptyRun(t *testing.T) {
	store, run := newTestRun(t)
	handler, _, _ := newTestProcessHandler(t, store)

	req := requestWithChiParams(
		httptest.NewRequest("POST", "/api/v1/runs/"+run.ID+"/detect", nil),
		map[string]string{"id": run.ID},
	)
	recorder := httptest.NewRecorder()
	handler.Detect(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "run has no photos")
}

func TestDetectAndMatchFlow(t *testing.T) {
	store, run := newTestRun(t)
	imgData := encodeTestImage(t)
	run.AddPhoto(session.Photo{SourceName: "a.jpg", Data: imgData})
	run.AddPhoto(session.Photo{SourceName: "b.jpg", Data: imgData})

	handler, jobManager, indexes := newTestProcessHandler(t, store)

	// Detection pass.
	req := requestWithChiParams(
		httptest.NewRequest("POST", "/api/v1/runs/"+run.ID+"/detect", nil),
		map[string]string{"id": run.ID},
	)
	recorder := httptest.NewRecorder()
	handler.Detect(recorder, req)
	assertStatusCode(t, recorder, http.StatusAccepted)

	var started struct {
		JobID string `json:"job_id"`
	}
	parseJSONResponse(t, recorder, &started)

	job := waitForJob(t, jobManager, started.JobID)
	if job.GetStatus() != JobStatusCompleted {
		t.Fatalf("detect job status = %s, want completed", job.GetStatus())
	}

	snapshot := job.Snapshot()
	if snapshot.Processed != 2 || snapshot.Total != 2 {
		t.Errorf("progress = %d/%d, want 2/2", snapshot.Processed, snapshot.Total)
	}

	// Both photos carry the same face, so dedup collapses to one candidate.
	candidates := run.Candidates()
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if indexes.Get(run.ID) == nil {
		t.Fatal("detection must build the candidate index")
	}

	// Matching pass against the selected reference.
	body := `{"face_id":"` + candidates[0].ID + `"}`
	req = requestWithChiParams(
		httptest.NewRequest("POST", "/api/v1/runs/"+run.ID+"/select", strings.NewReader(body)),
		map[string]string{"id": run.ID},
	)
	recorder = httptest.NewRecorder()
	handler.Select(recorder, req)
	assertStatusCode(t, recorder, http.StatusAccepted)

	parseJSONResponse(t, recorder, &started)
	job = waitForJob(t, jobManager, started.JobID)
	if job.GetStatus() != JobStatusCompleted {
		t.Fatalf("match job status = %s, want completed", job.GetStatus())
	}

	for _, p := range run.Photos() {
		if !p.Flagged {
			t.Errorf("photo %s should be flagged, its face matches the reference", p.SourceName)
		}
	}
}

func TestSelectUnknownCandidate(t *testing.T) {
	store, run := newTestRun(t)
	run.SetCandidates([]face.Face{testCandidate("f1", face.QualityHigh, []float32{1, 0, 0})})

	handler, _, _ := newTestProcessHandler(t, store)
	req := requestWithChiParams(
		httptest.NewRequest("POST", "/api/v1/runs/"+run.ID+"/select", strings.NewReader(`{"face_id":"ghost"}`)),
		map[string]string{"id": run.ID},
	)
	recorder := httptest.NewRecorder()
	handler.Select(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestJobStatusNotFound(t *testing.T) {
	store, run := newTestRun(t)
	handler, _, _ := newTestProcessHandler(t, store)

	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/runs/"+run.ID+"/jobs/nope", nil),
		map[string]string{"id": run.ID, "jobId": "nope"},
	)
	recorder := httptest.NewRecorder()
	handler.JobStatus(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}
