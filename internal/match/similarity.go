// Package match implements the face identity matching policy: cosine
// similarity over embeddings with a geometric fallback, greedy candidate
// deduplication, and the per-photo match decision.
package match

import (
	"math"

	"github.com/et-316/ex-file-eraser/internal/face"
)

// Cosine computes the cosine similarity between two embedding vectors.
// Returns a value in [-1, 1], where 1 means identical. Mismatched lengths,
// empty vectors, and zero magnitudes are defined zero-similarity results,
// never errors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// regionsSimilar is the geometric fallback used when embeddings are missing:
// two regions count as the same face when their widths and heights each
// differ by less than tolerancePx. Deliberately binary and lower-resolution
// than the embedding path.
func regionsSimilar(a, b face.Region, tolerancePx float64) bool {
	return math.Abs(a.Width-b.Width) < tolerancePx &&
		math.Abs(a.Height-b.Height) < tolerancePx
}

// Similarity scores two faces in [-1, 1]. When both faces carry embeddings
// the score is their cosine similarity (zero for mismatched lengths); when
// either embedding is missing, the geometric fallback yields 1 or 0 under
// the given pixel tolerance.
func Similarity(a, b *face.Face, tolerancePx float64) float64 {
	if a.HasEmbedding() && b.HasEmbedding() {
		return Cosine(a.Embedding, b.Embedding)
	}
	if regionsSimilar(a.Region, b.Region, tolerancePx) {
		return 1
	}
	return 0
}
