package handlers

import (
	"testing"

	"github.com/et-316/ex-file-eraser/internal/pipeline"
)

func TestJobProgressEventCarriesStage(t *testing.T) {
	manager := NewJobManager()
	job, _, err := manager.StartJob("run-1", JobKindMatch)
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	ch := job.AddListener()
	defer job.RemoveListener(ch)

	job.SetProgress(2, 5)

	event := <-ch
	if event.Type != "progress" {
		t.Fatalf("event type = %q, want progress", event.Type)
	}
	report, ok := event.Data.(pipeline.Progress)
	if !ok {
		t.Fatalf("event data is %T, want pipeline.Progress", event.Data)
	}
	if report.Current != 2 || report.Total != 5 {
		t.Errorf("progress = %d/%d, want 2/5", report.Current, report.Total)
	}
	if report.Stage != pipeline.StageMatching {
		t.Errorf("stage = %q, want %q", report.Stage, pipeline.StageMatching)
	}
}

func TestJobDetectProgressStage(t *testing.T) {
	manager := NewJobManager()
	job, _, err := manager.StartJob("run-2", JobKindDetect)
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	ch := job.AddListener()
	defer job.RemoveListener(ch)

	job.SetProgress(1, 1)

	event := <-ch
	report, ok := event.Data.(pipeline.Progress)
	if !ok {
		t.Fatalf("event data is %T, want pipeline.Progress", event.Data)
	}
	if report.Stage != pipeline.StageDetecting {
		t.Errorf("stage = %q, want %q", report.Stage, pipeline.StageDetecting)
	}
}
