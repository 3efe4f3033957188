package session

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"

	"github.com/et-316/ex-file-eraser/internal/face"
)

// indexMaxNeighbors (M) is the maximum number of neighbors per HNSW node.
const indexMaxNeighbors = 16

// CandidateIndex is an in-memory approximate nearest neighbor index over a
// run's candidate faces. It backs the similar-candidates lookup; match
// decisions never go through it, they use exact pairwise similarity.
type CandidateIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	byID  map[string]*face.Face
}

// NewCandidateIndex creates an empty index.
func NewCandidateIndex() *CandidateIndex {
	return &CandidateIndex{byID: make(map[string]*face.Face)}
}

// Build replaces the index contents with the given faces. Faces without an
// embedding are skipped; they cannot be searched by vector.
func (ci *CandidateIndex) Build(faces []face.Face) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	if len(faces) == 0 {
		ci.graph = nil
		ci.byID = make(map[string]*face.Face)
		return nil
	}

	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	ci.byID = make(map[string]*face.Face, len(faces))
	for i := range faces {
		f := &faces[i]
		if !f.HasEmbedding() {
			continue
		}
		g.Add(hnsw.MakeNode(f.ID, f.Embedding))
		ci.byID[f.ID] = f
	}

	ci.graph = g
	return nil
}

// Search finds the k nearest candidates to the query embedding and returns
// them with their cosine distances.
func (ci *CandidateIndex) Search(query []float32, k int) ([]face.Face, []float64, error) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()

	if ci.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	neighbors := ci.graph.Search(query, k)

	faces := make([]face.Face, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		f, ok := ci.byID[n.Key]
		if !ok {
			continue
		}
		faces = append(faces, *f)
		distances = append(distances, float64(hnsw.CosineDistance(query, n.Value)))
	}

	return faces, distances, nil
}

// Count returns the number of indexed candidates.
func (ci *CandidateIndex) Count() int {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return len(ci.byID)
}
