// Package detect defines the external adapter contracts for face detection
// and embedding, together with HTTP client implementations talking to local
// model servers. The matching core depends only on the interfaces, so it is
// testable with fake adapters returning canned vectors.
package detect

import (
	"context"

	"github.com/et-316/ex-file-eraser/internal/face"
)

// Detection is one raw detector result before normalization into a Face.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        face.Region `json:"box"`
}

// Detector locates candidate faces in an image.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]Detection, error)
}

// Embedder computes a fixed-length vector for a cropped face image.
// Failure is non-fatal for callers: the embedding is simply omitted.
type Embedder interface {
	Embed(ctx context.Context, faceImage []byte) ([]float32, error)
}

// personLabels are the detector categories that reach the face builder.
// Everything else (cars, dogs, furniture) is discarded.
var personLabels = map[string]bool{
	"person": true,
	"face":   true,
}

// FilterPeople keeps detections whose label denotes a person or face and
// whose confidence meets the minimum.
func FilterPeople(detections []Detection, minConfidence float64) []Detection {
	kept := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if personLabels[d.Label] && d.Confidence > minConfidence {
			kept = append(kept, d)
		}
	}
	return kept
}

// WholeImageFallback treats the entire image as a single face region. Used
// when zero qualifying detections exist so already-cropped inputs (a
// portrait saved from a chat, a profile picture) stay usable.
func WholeImageFallback(imgWidth, imgHeight int, confidence float64) Detection {
	return Detection{
		Label:      "face",
		Confidence: confidence,
		Box:        face.Region{X: 0, Y: 0, Width: float64(imgWidth), Height: float64(imgHeight)},
	}
}
