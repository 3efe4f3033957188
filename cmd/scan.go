package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/et-316/ex-file-eraser/internal/config"
	"github.com/et-316/ex-file-eraser/internal/detect"
	"github.com/et-316/ex-file-eraser/internal/face"
	"github.com/et-316/ex-file-eraser/internal/match"
	"github.com/et-316/ex-file-eraser/internal/pipeline"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Detect faces across a photo directory",
	Long: `Scan a directory of photos, run face detection and embedding on each
one, and print the deduplicated candidate faces. Use the candidate IDs with
the erase command or the web UI to pick the reference identity.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("dir", "", "Directory of photos to scan (required)")
	scanCmd.MarkFlagRequired("dir")
}

// imageExtensions are the file types a directory scan picks up.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// loadDirImages reads every supported image in dir, sorted by name so batch
// order and progress are stable across invocations.
func loadDirImages(dir string) ([]pipeline.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var images []pipeline.Image
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		images = append(images, pipeline.Image{Ref: entry.Name(), Data: data})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Ref < images[j].Ref })

	if len(images) == 0 {
		return nil, errors.New("no images found in directory")
	}
	return images, nil
}

// newBatchBar creates a progress bar for a batch pass.
func newBatchBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// detectImages runs the detection pass over loaded images and returns the
// per-image results in batch order.
func detectImages(ctx context.Context, cfg *config.Config, images []pipeline.Image) ([]pipeline.Result, error) {
	orchestrator := pipeline.NewOrchestrator(
		detect.NewHTTPDetector(cfg.Detector.URL),
		detect.NewHTTPEmbedder(cfg.Embedding.URL, cfg.Embedding.Dim),
		cfg.Policy.Detect,
	)

	bar := newBatchBar(len(images), "Detecting")
	results, err := orchestrator.ProcessBatch(ctx, images, func(current, total int) {
		_ = bar.Set(current)
	})
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("detection batch failed: %w", err)
	}
	return results, nil
}

// dedupCandidates collects every detected face and reduces it to the ranked
// candidate list.
func dedupCandidates(cfg *config.Config, results []pipeline.Result) []face.Face {
	var all []face.Face
	for _, r := range results {
		all = append(all, r.Faces...)
	}
	policy := match.DedupPolicyFromConfig(cfg.Policy.Dedup)
	return match.RankForPresentation(match.Deduplicate(all, policy))
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	dir := mustGetString(cmd, "dir")

	images, err := loadDirImages(dir)
	if err != nil {
		return err
	}
	results, err := detectImages(cmd.Context(), cfg, images)
	if err != nil {
		return err
	}

	totalFaces := 0
	for _, r := range results {
		totalFaces += len(r.Faces)
	}
	candidates := dedupCandidates(cfg, results)

	fmt.Printf("\nScanned %d photos, found %d faces, %d distinct candidates\n\n",
		len(results), totalFaces, len(candidates))

	if len(candidates) == 0 {
		return nil
	}

	fmt.Printf("%-28s %-24s %-8s %-6s %s\n", "CANDIDATE", "SOURCE", "QUALITY", "CONF", "SCORE")
	for _, c := range candidates {
		fmt.Printf("%-28s %-24s %-8s %-6.2f %.2f\n",
			c.ID, c.SourceImage, c.Quality.String(), c.Confidence, c.PresentationScore())
	}
	return nil
}
