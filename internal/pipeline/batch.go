// Package pipeline runs detection and matching across an ordered photo
// batch, one image at a time, with deterministic progress reporting.
package pipeline

import (
	"context"
	"log"

	"github.com/et-316/ex-file-eraser/internal/config"
	"github.com/et-316/ex-file-eraser/internal/detect"
	"github.com/et-316/ex-file-eraser/internal/face"
	"github.com/et-316/ex-file-eraser/internal/match"
)

// Stage identifies which pass of the flow a progress report belongs to.
type Stage string

const (
	StageDetecting Stage = "detecting"
	StageMatching  Stage = "matching"
)

// Progress is a transient batch progress report. Current never exceeds
// Total, and the final report of a completed batch has Current == Total.
type Progress struct {
	Current int   `json:"current"`
	Total   int   `json:"total"`
	Stage   Stage `json:"stage"`
}

// ProgressFunc receives the 1-based index of the item just finished and the
// batch length. It is invoked synchronously, exactly once per item, after
// that item completes.
type ProgressFunc func(current, total int)

// Image is one batch input: an opaque reference plus encoded pixel data.
type Image struct {
	Ref  string
	Data []byte
}

// Result is the per-image outcome, index-aligned with the batch input. A
// failed item yields an empty face list, never a missing slot.
type Result struct {
	ImageRef string
	Faces    []face.Face
}

// Orchestrator owns the detection and embedding adapters and drives them
// across a batch. Construct it once, reuse it for every batch; adapters are
// injected rather than reached for as globals.
type Orchestrator struct {
	detector detect.Detector
	embedder detect.Embedder
	policy   config.DetectPolicyConfig
}

// NewOrchestrator creates an orchestrator. A nil embedder disables the
// embedding pass: faces are still built, matching falls back to geometry.
func NewOrchestrator(detector detect.Detector, embedder detect.Embedder, policy config.DetectPolicyConfig) *Orchestrator {
	return &Orchestrator{
		detector: detector,
		embedder: embedder,
		policy:   policy,
	}
}

// ProcessBatch detects (and embeds) faces in every image, strictly
// sequentially so progress is monotonic and memory stays bounded. One
// item's failure degrades that item to an empty face list and the batch
// continues. Results are index-assigned into a pre-sized slice so they stay
// aligned with the input. Cancelling the context stops further items and
// returns the results yielded so far together with the context error.
func (o *Orchestrator) ProcessBatch(ctx context.Context, images []Image, onProgress ProgressFunc) ([]Result, error) {
	results := make([]Result, len(images))

	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return results[:i], err
		}

		results[i] = Result{
			ImageRef: img.Ref,
			Faces:    o.processImage(ctx, img),
		}

		if onProgress != nil {
			onProgress(i+1, len(images))
		}
	}

	return results, nil
}

// processImage runs one image through detection, normalization, and the
// optional embedding pass. Adapter failures degrade the image, never abort.
func (o *Orchestrator) processImage(ctx context.Context, img Image) []face.Face {
	imgWidth, imgHeight, err := detect.ImageSize(img.Data)
	if err != nil {
		log.Printf("pipeline: skipping %s: %v", img.Ref, err)
		return []face.Face{}
	}

	detections, err := o.detector.Detect(ctx, img.Data)
	if err != nil {
		log.Printf("pipeline: detection failed for %s: %v", img.Ref, err)
		return []face.Face{}
	}

	people := detect.FilterPeople(detections, o.policy.MinConfidence)
	if len(people) == 0 && o.policy.WholeImageFallback {
		people = []detect.Detection{detect.WholeImageFallback(imgWidth, imgHeight, o.policy.FallbackConfidence)}
	}

	faces := make([]face.Face, 0, len(people))
	for i, det := range people {
		f, ok := face.New(img.Ref, i, det.Box, det.Confidence, imgWidth, imgHeight)
		if !ok {
			continue
		}
		f.Embedding = o.embedFace(ctx, img, f.Region)
		faces = append(faces, f)
	}
	return faces
}

// embedCropMaxEdge caps the longest edge of a face crop sent to the
// embedding server. The model downsamples anyway, so shipping full-size
// crops only costs bandwidth.
const embedCropMaxEdge = 640

// embedFace crops the region and asks the embedder for a vector. Any
// failure returns nil: the face simply carries no embedding.
func (o *Orchestrator) embedFace(ctx context.Context, img Image, region face.Region) []float32 {
	if o.embedder == nil {
		return nil
	}

	crop, err := detect.CropRegion(img.Data, region)
	if err != nil {
		log.Printf("pipeline: crop failed for %s: %v", img.Ref, err)
		return nil
	}
	crop, err = detect.ResizeImage(crop, embedCropMaxEdge)
	if err != nil {
		log.Printf("pipeline: resize failed for %s: %v", img.Ref, err)
		return nil
	}

	embedding, err := o.embedder.Embed(ctx, crop)
	if err != nil {
		log.Printf("pipeline: embedding failed for %s: %v", img.Ref, err)
		return nil
	}
	return embedding
}

// PhotoFaces pairs a photo identifier with the faces already detected in it.
type PhotoFaces struct {
	PhotoID string
	Faces   []face.Face
}

// FlagBatch runs the match decision for every photo against the reference
// identity, in input order with per-item progress. The decision itself is
// pure; this wrapper only adds sequencing, progress, and cancellation.
func FlagBatch(ctx context.Context, reference *face.Face, photos []PhotoFaces, policy match.Policy, onProgress ProgressFunc) ([]bool, error) {
	flags := make([]bool, len(photos))

	for i := range photos {
		if err := ctx.Err(); err != nil {
			return flags[:i], err
		}

		flags[i] = policy.PhotoContains(reference, photos[i].Faces)

		if onProgress != nil {
			onProgress(i+1, len(photos))
		}
	}

	return flags, nil
}
