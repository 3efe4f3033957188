package match

import (
	"sort"

	"github.com/et-316/ex-file-eraser/internal/config"
	"github.com/et-316/ex-file-eraser/internal/face"
)

// DedupPolicy holds the deduplication thresholds. Values come from the
// embedded policy defaults; see config.DedupPolicyConfig.
type DedupPolicy struct {
	// SimilarityThreshold is the embedding-path cutoff: a candidate whose
	// cosine similarity to an existing representative exceeds it is folded
	// into that representative.
	SimilarityThreshold float64
	// FallbackTolerancePx is the geometric tolerance used when embeddings
	// are missing. Tighter than the match tolerance because dedup compares
	// near-identical crops, not faces across photos.
	FallbackTolerancePx float64
}

// DedupPolicyFromConfig builds a DedupPolicy from loaded configuration.
func DedupPolicyFromConfig(cfg config.DedupPolicyConfig) DedupPolicy {
	return DedupPolicy{
		SimilarityThreshold: cfg.SimilarityThreshold,
		FallbackTolerancePx: cfg.FallbackTolerancePx,
	}
}

// Deduplicate collapses a flat list of faces from all processed photos into
// one representative per perceived distinct person, preserving first-seen
// order. This is greedy first-seen clustering, not true clustering: it is
// not transitive, and later representatives are never merged into earlier
// ones retroactively. Borderline similarity chains (A~B, B~C, A≁C) can
// therefore split; that approximation is intentional.
func Deduplicate(faces []face.Face, policy DedupPolicy) []face.Face {
	representatives := make([]face.Face, 0, len(faces))
	for i := range faces {
		candidate := &faces[i]
		duplicate := false
		for j := range representatives {
			if isDuplicate(candidate, &representatives[j], policy) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			representatives = append(representatives, *candidate)
		}
	}
	return representatives
}

// isDuplicate reports whether candidate matches an already-kept
// representative closely enough to be the same face.
func isDuplicate(candidate, representative *face.Face, policy DedupPolicy) bool {
	if candidate.HasEmbedding() && representative.HasEmbedding() {
		return Cosine(candidate.Embedding, representative.Embedding) > policy.SimilarityThreshold
	}
	return regionsSimilar(candidate.Region, representative.Region, policy.FallbackTolerancePx)
}

// RankForPresentation returns the representatives sorted by presentation
// score, best quality first. It works on a copy: the reordering offers the
// best candidates to the user first and must not alter which faces were
// selected as representatives.
func RankForPresentation(representatives []face.Face) []face.Face {
	ranked := make([]face.Face, len(representatives))
	copy(ranked, representatives)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PresentationScore() > ranked[j].PresentationScore()
	})
	return ranked
}
