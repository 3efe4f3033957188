package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/et-316/ex-file-eraser/internal/config"
	"github.com/et-316/ex-file-eraser/internal/session"
)

// RunLoader reads run snapshots back from the persistence layer.
type RunLoader interface {
	ListRunIDs(ctx context.Context) ([]string, error)
	LoadRun(ctx context.Context, runID string) (*session.Run, error)
}

// RestoreRuns reloads every persisted run into the store so working sets
// survive a server restart. Snapshots carry photos and faces only, so the
// deduplicated candidates and the similarity index are rebuilt here. A run
// that fails to load is skipped; one bad snapshot must not block startup.
func RestoreRuns(ctx context.Context, loader RunLoader, store session.Store, indexes *IndexSet, dedup config.DedupPolicyConfig) (int, error) {
	ids, err := loader.ListRunIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list persisted runs: %w", err)
	}

	restored := 0
	for _, id := range ids {
		run, err := loader.LoadRun(ctx, id)
		if err != nil {
			log.Printf("skipping persisted run %s: %v", sanitizeForLog(id), err)
			continue
		}

		rebuildCandidates(run, dedup, indexes)

		if err := store.Restore(ctx, run); err != nil {
			log.Printf("skipping persisted run %s: %v", sanitizeForLog(id), err)
			continue
		}
		restored++
	}
	return restored, nil
}
