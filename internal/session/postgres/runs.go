package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/et-316/ex-file-eraser/internal/face"
	"github.com/et-316/ex-file-eraser/internal/session"
)

// RunRepository persists run working sets. A run is written as a whole
// snapshot; partial updates are not worth the bookkeeping at this scale.
type RunRepository struct {
	pool *Pool
}

// NewRunRepository creates a PostgreSQL run repository.
func NewRunRepository(pool *Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// SaveRun writes the run's photos and faces, replacing any previous snapshot.
func (r *RunRepository) SaveRun(ctx context.Context, run *session.Run) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, label, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label
	`, run.ID, run.Label(), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_photos WHERE run_id = $1", run.ID); err != nil {
		return fmt.Errorf("clear run photos: %w", err)
	}

	for position, photo := range run.Photos() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_photos (id, run_id, position, source_name, native_asset_id, flagged, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, photo.ID, run.ID, position, photo.SourceName, photo.NativeAssetID, photo.Flagged, photo.Data)
		if err != nil {
			return fmt.Errorf("insert photo %s: %w", photo.ID, err)
		}

		if err := insertFaces(ctx, tx, run.ID, photo); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run snapshot: %w", err)
	}
	return nil
}

func insertFaces(ctx context.Context, tx *sql.Tx, runID string, photo session.Photo) error {
	for i, f := range photo.Faces {
		bbox := pq.Array([]float64{f.Region.X, f.Region.Y, f.Region.Width, f.Region.Height})

		var embedding any
		if f.HasEmbedding() {
			embedding = pgvector.NewVector(f.Embedding)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_faces (run_id, photo_id, face_id, face_index, bbox, confidence, quality, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, runID, photo.ID, f.ID, i, bbox, f.Confidence, int(f.Quality), embedding)
		if err != nil {
			return fmt.Errorf("insert face %s: %w", f.ID, err)
		}
	}
	return nil
}

// LoadRun reconstructs a run's working set from its latest snapshot.
// Candidates and the reference selection are derived state and are rebuilt
// by the caller from the loaded faces.
func (r *RunRepository) LoadRun(ctx context.Context, runID string) (*session.Run, error) {
	var (
		label     sql.NullString
		createdAt sql.NullTime
	)
	err := r.pool.QueryRow(ctx, "SELECT label, created_at FROM runs WHERE id = $1", runID).Scan(&label, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	run := session.NewRun(runID)
	if label.Valid {
		run.SetLabel(label.String)
	}
	if createdAt.Valid {
		run.CreatedAt = createdAt.Time
	}

	photos, err := r.loadPhotos(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, p := range photos {
		run.AddPhoto(p)
	}
	return run, nil
}

func (r *RunRepository) loadPhotos(ctx context.Context, runID string) ([]session.Photo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_name, native_asset_id, flagged, data
		FROM run_photos
		WHERE run_id = $1
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run photos: %w", err)
	}
	defer rows.Close()

	var photos []session.Photo
	for rows.Next() {
		var p session.Photo
		if err := rows.Scan(&p.ID, &p.SourceName, &p.NativeAssetID, &p.Flagged, &p.Data); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}

	for i := range photos {
		faces, err := r.loadFaces(ctx, photos[i].ID)
		if err != nil {
			return nil, err
		}
		photos[i].Faces = faces
	}
	return photos, nil
}

func (r *RunRepository) loadFaces(ctx context.Context, photoID string) ([]face.Face, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT face_id, bbox, confidence, quality, embedding
		FROM run_faces
		WHERE photo_id = $1
		ORDER BY face_index
	`, photoID)
	if err != nil {
		return nil, fmt.Errorf("query run faces: %w", err)
	}
	defer rows.Close()

	faces := []face.Face{}
	for rows.Next() {
		var (
			f         face.Face
			bbox      []float64
			quality   int
			embedding pgvector.Vector
			hasVector sql.NullString
		)
		// Scan the vector twice: NullString to detect NULL, then parse.
		if err := rows.Scan(&f.ID, pq.Array(&bbox), &f.Confidence, &quality, &hasVector); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		if len(bbox) == 4 {
			f.Region = face.Region{X: bbox[0], Y: bbox[1], Width: bbox[2], Height: bbox[3]}
		}
		f.Quality = face.Quality(quality)
		if hasVector.Valid {
			if err := embedding.Scan([]byte(hasVector.String)); err != nil {
				return nil, fmt.Errorf("parse face embedding: %w", err)
			}
			f.Embedding = embedding.Slice()
		}
		f.SourceImage = photoID
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// DeleteRun removes a run snapshot and everything under it.
func (r *RunRepository) DeleteRun(ctx context.Context, runID string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM runs WHERE id = $1", runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return session.ErrRunNotFound
	}
	return nil
}

// ListRunIDs returns all stored run IDs, oldest first.
func (r *RunRepository) ListRunIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT id FROM runs ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return ids, nil
}
