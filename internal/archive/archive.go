// Package archive builds the zip export of a run: non-flagged photos land in
// clean/, flagged ones in archived/ so the user keeps a copy of everything
// before the destructive pass.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/et-316/ex-file-eraser/internal/session"
)

// WriteRun streams a zip of the run's photos to w. Entries are numbered by
// working-set position so names stay stable across exports. Returns the
// number of entries written.
func WriteRun(w io.Writer, photos []session.Photo) (int, error) {
	zipWriter := zip.NewWriter(w)

	written := 0
	for i, photo := range photos {
		if len(photo.Data) == 0 {
			continue
		}

		entry, err := zipWriter.Create(entryName(photo, i))
		if err != nil {
			return written, fmt.Errorf("failed to create entry for %s: %w", photo.ID, err)
		}
		if _, err := entry.Write(photo.Data); err != nil {
			return written, fmt.Errorf("failed to write %s to zip: %w", photo.ID, err)
		}
		written++
	}

	if err := zipWriter.Close(); err != nil {
		return written, fmt.Errorf("failed to finalize zip writer: %w", err)
	}
	return written, nil
}

func entryName(photo session.Photo, position int) string {
	folder := "clean"
	if photo.Flagged {
		folder = "archived"
	}

	ext := strings.ToLower(filepath.Ext(photo.SourceName))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s/photo-%d%s", folder, position+1, ext)
}
