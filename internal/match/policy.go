package match

import (
	"github.com/et-316/ex-file-eraser/internal/config"
	"github.com/et-316/ex-file-eraser/internal/face"
)

// Policy decides whether a photo contains the reference identity. The
// decision is pure and deterministic given its inputs; it performs no I/O.
type Policy struct {
	// BaseThreshold is the starting cosine similarity bar.
	BaseThreshold float64
	// HighQualityBoost and MediumQualityBoost lower the bar for candidate
	// faces of that quality: higher-fidelity detections deserve a more
	// permissive bar.
	HighQualityBoost   float64
	MediumQualityBoost float64
	// ConfidenceBoost lowers the bar further for candidates whose detector
	// confidence exceeds ConfidenceFloor.
	ConfidenceBoost float64
	ConfidenceFloor float64
	// FallbackTolerancePx is the geometric tolerance used when either face
	// lacks an embedding. Wider than the dedup tolerance because matching
	// compares faces across photos.
	FallbackTolerancePx float64
}

// PolicyFromConfig builds a Policy from loaded configuration. With strict
// set, the stricter base threshold variant is used.
func PolicyFromConfig(cfg config.MatchPolicyConfig, strict bool) Policy {
	base := cfg.BaseThreshold
	if strict {
		base = cfg.StrictThreshold
	}
	return Policy{
		BaseThreshold:       base,
		HighQualityBoost:    cfg.HighQualityBoost,
		MediumQualityBoost:  cfg.MediumQualityBoost,
		ConfidenceBoost:     cfg.ConfidenceBoost,
		ConfidenceFloor:     cfg.ConfidenceFloor,
		FallbackTolerancePx: cfg.FallbackTolerancePx,
	}
}

// Threshold returns the adjusted similarity bar for a candidate face: the
// base threshold lowered by the candidate's quality and confidence boosts.
func (p Policy) Threshold(candidate *face.Face) float64 {
	threshold := p.BaseThreshold
	switch candidate.Quality {
	case face.QualityHigh:
		threshold -= p.HighQualityBoost
	case face.QualityMedium:
		threshold -= p.MediumQualityBoost
	}
	if candidate.Confidence > p.ConfidenceFloor {
		threshold -= p.ConfidenceBoost
	}
	return threshold
}

// Matches reports whether a candidate face is the reference identity. With
// embeddings on both sides the cosine similarity must exceed the adaptive
// threshold; otherwise the geometric fallback decides.
func (p Policy) Matches(reference, candidate *face.Face) bool {
	if reference.HasEmbedding() && candidate.HasEmbedding() {
		return Cosine(reference.Embedding, candidate.Embedding) > p.Threshold(candidate)
	}
	return regionsSimilar(reference.Region, candidate.Region, p.FallbackTolerancePx)
}

// PhotoContains reports whether any face detected in a photo matches the
// reference identity. A single match anywhere in the photo is sufficient.
func (p Policy) PhotoContains(reference *face.Face, faces []face.Face) bool {
	for i := range faces {
		if p.Matches(reference, &faces[i]) {
			return true
		}
	}
	return false
}
