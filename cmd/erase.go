package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/et-316/ex-file-eraser/internal/archive"
	"github.com/et-316/ex-file-eraser/internal/config"
	"github.com/et-316/ex-file-eraser/internal/detect"
	"github.com/et-316/ex-file-eraser/internal/face"
	"github.com/et-316/ex-file-eraser/internal/match"
	"github.com/et-316/ex-file-eraser/internal/pipeline"
	"github.com/et-316/ex-file-eraser/internal/session"
)

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Match a directory against a reference face and export the split archive",
	Long: `Run the whole pipeline in one pass: detect faces in every photo of the
directory, match them against the reference face, and export a zip archive
with matching photos under archived/ and the rest under clean/.

The reference image should contain the person to erase; when it contains
several faces the best-quality one is used.`,
	RunE: runErase,
}

func init() {
	rootCmd.AddCommand(eraseCmd)

	eraseCmd.Flags().String("dir", "", "Directory of photos to match (required)")
	eraseCmd.Flags().String("reference", "", "Image of the person to erase (required)")
	eraseCmd.Flags().String("out", "", "Output zip path (required)")
	eraseCmd.Flags().Bool("strict", false, "Use the stricter base matching threshold")
	eraseCmd.MarkFlagRequired("dir")
	eraseCmd.MarkFlagRequired("reference")
	eraseCmd.MarkFlagRequired("out")
}

// referenceFace detects faces in the reference image and picks the best one.
func referenceFace(ctx context.Context, cfg *config.Config, path string) (face.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return face.Face{}, fmt.Errorf("failed to read reference image: %w", err)
	}

	orchestrator := pipeline.NewOrchestrator(
		detect.NewHTTPDetector(cfg.Detector.URL),
		detect.NewHTTPEmbedder(cfg.Embedding.URL, cfg.Embedding.Dim),
		cfg.Policy.Detect,
	)
	results, err := orchestrator.ProcessBatch(ctx, []pipeline.Image{
		{Ref: filepath.Base(path), Data: data},
	}, nil)
	if err != nil {
		return face.Face{}, fmt.Errorf("reference detection failed: %w", err)
	}
	if len(results) == 0 || len(results[0].Faces) == 0 {
		return face.Face{}, errors.New("no face found in the reference image")
	}

	best := results[0].Faces[0]
	for _, f := range results[0].Faces[1:] {
		if f.PresentationScore() > best.PresentationScore() {
			best = f
		}
	}
	return best, nil
}

func runErase(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	dir := mustGetString(cmd, "dir")
	refPath := mustGetString(cmd, "reference")
	outPath := mustGetString(cmd, "out")
	strict := mustGetBool(cmd, "strict")

	ctx := cmd.Context()

	reference, err := referenceFace(ctx, cfg, refPath)
	if err != nil {
		return err
	}
	fmt.Printf("Reference face: %s (quality %s, confidence %.2f)\n",
		reference.ID, reference.Quality.String(), reference.Confidence)

	images, err := loadDirImages(dir)
	if err != nil {
		return err
	}
	results, err := detectImages(ctx, cfg, images)
	if err != nil {
		return err
	}

	batch := make([]pipeline.PhotoFaces, len(results))
	for i, r := range results {
		batch[i] = pipeline.PhotoFaces{PhotoID: r.ImageRef, Faces: r.Faces}
	}

	policy := match.PolicyFromConfig(cfg.Policy.Match, strict)
	bar := newBatchBar(len(batch), "Matching")
	flags, err := pipeline.FlagBatch(ctx, &reference, batch, policy, func(current, total int) {
		_ = bar.Set(current)
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("matching batch failed: %w", err)
	}

	photos := make([]session.Photo, len(images))
	flagged := 0
	for i, img := range images {
		photos[i] = session.Photo{
			SourceName: img.Ref,
			Data:       img.Data,
			Flagged:    flags[i],
		}
		if flags[i] {
			flagged++
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	written, err := archive.WriteRun(out, photos)
	if err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	fmt.Printf("Wrote %d photos to %s (%d matched the reference)\n", written, outPath, flagged)
	return nil
}
