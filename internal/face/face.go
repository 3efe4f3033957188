// Package face defines the Face record produced for each detection and the
// builder that normalizes raw detector output into records.
package face

import "fmt"

// Quality is a coarse rating of a detected face derived from its region area.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

// Region area thresholds (px²) for quality rating.
const (
	mediumAreaThreshold = 1600
	highAreaThreshold   = 6400
)

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Weight returns the presentation weight for the quality level.
func (q Quality) Weight() float64 {
	switch q {
	case QualityHigh:
		return 3
	case QualityMedium:
		return 2
	default:
		return 1
	}
}

// RateQuality rates a face by its clipped region area.
func RateQuality(area float64) Quality {
	switch {
	case area < mediumAreaThreshold:
		return QualityLow
	case area < highAreaThreshold:
		return QualityMedium
	default:
		return QualityHigh
	}
}

// Region is a face bounding box in source-image pixel space.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the region area in px².
func (r Region) Area() float64 {
	return r.Width * r.Height
}

// Clip constrains the region to [0, imgWidth] x [0, imgHeight].
func (r Region) Clip(imgWidth, imgHeight float64) Region {
	x1 := max(r.X, 0)
	y1 := max(r.Y, 0)
	x2 := min(r.X+r.Width, imgWidth)
	y2 := min(r.Y+r.Height, imgHeight)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Face is one detected face instance. Records are created once per detection
// during a batch run and never mutated afterwards.
type Face struct {
	ID          string    `json:"id"`
	SourceImage string    `json:"source_image"`
	Region      Region    `json:"region"`
	Confidence  float64   `json:"confidence"`
	Quality     Quality   `json:"quality"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the embedding adapter succeeded for this face.
func (f *Face) HasEmbedding() bool {
	return len(f.Embedding) > 0
}

// PresentationScore orders candidate faces for user selection, best first.
func (f *Face) PresentationScore() float64 {
	return f.Quality.Weight()*100 + f.Confidence
}

// New builds a Face record from a raw detection. The region is clipped to the
// image bounds; a clipped region with zero area yields ok=false and no record
// (a filtering step, not an error). Quality is rated from the clipped area so
// it is fixed before any embedding attempt.
func New(sourceRef string, index int, region Region, confidence float64, imgWidth, imgHeight int) (Face, bool) {
	clipped := region.Clip(float64(imgWidth), float64(imgHeight))
	if clipped.Width <= 0 || clipped.Height <= 0 {
		return Face{}, false
	}

	return Face{
		ID:          fmt.Sprintf("%s-%d", sourceRef, index),
		SourceImage: sourceRef,
		Region:      clipped,
		Confidence:  confidence,
		Quality:     RateQuality(clipped.Area()),
	}, true
}
