package match

import (
	"testing"

	"github.com/et-316/ex-file-eraser/internal/face"
)

func testDedupPolicy() DedupPolicy {
	return DedupPolicy{SimilarityThreshold: 0.8, FallbackTolerancePx: 50}
}

func embeddedFace(id string, embedding []float32) face.Face {
	return face.Face{
		ID:        id,
		Region:    face.Region{Width: 100, Height: 100},
		Embedding: embedding,
	}
}

func TestDeduplicateCollapsesSimilarEmbeddings(t *testing.T) {
	faces := []face.Face{
		embeddedFace("a", []float32{1, 0, 0}),
		embeddedFace("b", []float32{0.99, 0.05, 0}), // same person as a
		embeddedFace("c", []float32{0, 1, 0}),       // distinct
	}

	reps := Deduplicate(faces, testDedupPolicy())
	if len(reps) != 2 {
		t.Fatalf("got %d representatives, want 2", len(reps))
	}
	if reps[0].ID != "a" || reps[1].ID != "c" {
		t.Errorf("representatives = %q, %q; want a, c (first-seen order)", reps[0].ID, reps[1].ID)
	}
}

func TestDeduplicateGeometricFallback(t *testing.T) {
	faces := []face.Face{
		{ID: "a", Region: face.Region{Width: 100, Height: 100}},
		{ID: "b", Region: face.Region{Width: 120, Height: 110}}, // within 50px
		{ID: "c", Region: face.Region{Width: 300, Height: 280}}, // distinct size
	}

	reps := Deduplicate(faces, testDedupPolicy())
	if len(reps) != 2 {
		t.Fatalf("got %d representatives, want 2", len(reps))
	}
	if reps[0].ID != "a" || reps[1].ID != "c" {
		t.Errorf("representatives = %q, %q; want a, c", reps[0].ID, reps[1].ID)
	}
}

func TestDeduplicateOutputIsSubset(t *testing.T) {
	faces := []face.Face{
		embeddedFace("a", []float32{1, 0}),
		embeddedFace("b", []float32{0, 1}),
		embeddedFace("c", []float32{0.98, 0.1}),
	}

	reps := Deduplicate(faces, testDedupPolicy())
	if len(reps) > len(faces) {
		t.Fatalf("output larger than input: %d > %d", len(reps), len(faces))
	}
	byID := make(map[string]bool, len(faces))
	for _, f := range faces {
		byID[f.ID] = true
	}
	for _, r := range reps {
		if !byID[r.ID] {
			t.Errorf("representative %q is not a member of the input", r.ID)
		}
	}
}

func TestDeduplicateIsDeterministic(t *testing.T) {
	faces := []face.Face{
		embeddedFace("a", []float32{1, 0, 0}),
		embeddedFace("b", []float32{0.9, 0.3, 0}),
		embeddedFace("c", []float32{0, 0, 1}),
		{ID: "d", Region: face.Region{Width: 40, Height: 40}},
	}

	first := Deduplicate(faces, testDedupPolicy())
	second := Deduplicate(faces, testDedupPolicy())
	if len(first) != len(second) {
		t.Fatalf("runs disagree on size: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("runs disagree at %d: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	if reps := Deduplicate(nil, testDedupPolicy()); len(reps) != 0 {
		t.Errorf("got %d representatives from empty input", len(reps))
	}
}

func TestRankForPresentation(t *testing.T) {
	reps := []face.Face{
		{ID: "low", Quality: face.QualityLow, Confidence: 0.99},
		{ID: "high", Quality: face.QualityHigh, Confidence: 0.6},
		{ID: "medium", Quality: face.QualityMedium, Confidence: 0.7},
	}

	ranked := RankForPresentation(reps)

	want := []string{"high", "medium", "low"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Errorf("ranked[%d] = %q, want %q", i, ranked[i].ID, id)
		}
	}
	// Original slice must keep first-seen order: ranking is presentation
	// only and must not alter the representative set.
	if reps[0].ID != "low" || reps[1].ID != "high" || reps[2].ID != "medium" {
		t.Error("RankForPresentation mutated its input")
	}
}
