//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/et-316/ex-file-eraser/internal/config"
	"github.com/et-316/ex-file-eraser/internal/face"
	"github.com/et-316/ex-file-eraser/internal/session"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestRunRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewRunRepository(pool)

	embedding := make([]float32, 512)
	for i := range embedding {
		embedding[i] = float32(i) / 512.0
	}

	run := session.NewRun("")
	run.SetLabel("The Ex")
	photoID := run.AddPhoto(session.Photo{
		SourceName:    "IMG_0001.jpg",
		NativeAssetID: "asset-1",
		Data:          []byte("jpeg-bytes"),
	})
	run.AddPhoto(session.Photo{SourceName: "IMG_0002.jpg"})
	run.SetFaces(photoID, []face.Face{
		{
			ID:          photoID + "-0",
			SourceImage: photoID,
			Region:      face.Region{X: 10, Y: 20, Width: 100, Height: 120},
			Confidence:  0.92,
			Quality:     face.QualityHigh,
			Embedding:   embedding,
		},
		{
			ID:          photoID + "-1",
			SourceImage: photoID,
			Region:      face.Region{X: 200, Y: 20, Width: 30, Height: 30},
			Confidence:  0.55,
			Quality:     face.QualityLow,
		},
	})
	if err := run.SetFlags([]bool{true, false}); err != nil {
		t.Fatalf("SetFlags failed: %v", err)
	}

	t.Run("SaveAndLoad", func(t *testing.T) {
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}

		loaded, err := repo.LoadRun(ctx, run.ID)
		if err != nil {
			t.Fatalf("Failed to load run: %v", err)
		}

		if loaded.Label() != "The Ex" {
			t.Errorf("Expected label 'The Ex', got '%s'", loaded.Label())
		}

		photos := loaded.Photos()
		if len(photos) != 2 {
			t.Fatalf("Expected 2 photos, got %d", len(photos))
		}
		if photos[0].ID != photoID {
			t.Errorf("Expected first photo %s, got %s", photoID, photos[0].ID)
		}
		if !photos[0].Flagged || photos[1].Flagged {
			t.Error("Expected flags [true false] to survive the round trip")
		}
		if photos[0].NativeAssetID != "asset-1" {
			t.Errorf("Expected native asset id 'asset-1', got '%s'", photos[0].NativeAssetID)
		}

		faces := photos[0].Faces
		if len(faces) != 2 {
			t.Fatalf("Expected 2 faces, got %d", len(faces))
		}
		if faces[0].Quality != face.QualityHigh {
			t.Errorf("Expected high quality face, got %s", faces[0].Quality)
		}
		if len(faces[0].Embedding) != 512 {
			t.Errorf("Expected 512-dim embedding, got %d", len(faces[0].Embedding))
		}
		if faces[1].HasEmbedding() {
			t.Error("Second face must come back without an embedding")
		}
		if faces[0].Region.Width != 100 {
			t.Errorf("Expected region width 100, got %v", faces[0].Region.Width)
		}
	})

	t.Run("SnapshotReplaces", func(t *testing.T) {
		run.RemovePhotos([]string{photoID})
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}

		loaded, err := repo.LoadRun(ctx, run.ID)
		if err != nil {
			t.Fatalf("Failed to load run: %v", err)
		}
		if loaded.Count() != 1 {
			t.Errorf("Expected 1 photo after snapshot replace, got %d", loaded.Count())
		}
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		ids, err := repo.ListRunIDs(ctx)
		if err != nil {
			t.Fatalf("Failed to list runs: %v", err)
		}
		if len(ids) != 1 || ids[0] != run.ID {
			t.Errorf("Expected [%s], got %v", run.ID, ids)
		}

		if err := repo.DeleteRun(ctx, run.ID); err != nil {
			t.Fatalf("Failed to delete run: %v", err)
		}
		if _, err := repo.LoadRun(ctx, run.ID); !errors.Is(err, session.ErrRunNotFound) {
			t.Errorf("Expected ErrRunNotFound after delete, got %v", err)
		}
		if err := repo.DeleteRun(ctx, run.ID); !errors.Is(err, session.ErrRunNotFound) {
			t.Errorf("Expected ErrRunNotFound for double delete, got %v", err)
		}
	})
}
