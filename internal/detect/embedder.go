package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const defaultEmbeddingURL = "http://localhost:8000"

// HTTPEmbedder computes face embeddings using an embedding server.
type HTTPEmbedder struct {
	httpAdapter
	dim int
}

// NewHTTPEmbedder creates an embedder client for the given server URL. A
// positive dim rejects vectors of any other length, catching a model swap on
// the embedding server before mismatched vectors poison similarity scores.
func NewHTTPEmbedder(baseURL string, dim int) *HTTPEmbedder {
	return &HTTPEmbedder{
		httpAdapter: httpAdapter{
			baseURL: trimBaseURL(baseURL, defaultEmbeddingURL),
			client:  &http.Client{},
		},
		dim: dim,
	}
}

// embeddingResponse represents the response from the embedding server
type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Embed posts a cropped face image to the embedding server and returns the
// embedding vector.
func (e *HTTPEmbedder) Embed(ctx context.Context, faceImage []byte) ([]float32, error) {
	body, err := e.postMultipartImage(ctx, "/embed/face", faceImage)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	if e.dim > 0 && len(resp.Embedding) != e.dim {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(resp.Embedding), e.dim)
	}

	return resp.Embedding, nil
}
