// Package session holds the per-run working set: imported photos, the faces
// found in them, the deduplicated candidate list and the selected reference.
// A run lives for one erase attempt and is discarded afterwards.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/et-316/ex-file-eraser/internal/face"
)

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrUnknownCandidate = errors.New("face is not one of the run's candidates")
	ErrNoReference      = errors.New("no reference face selected")
)

// Photo is one imported image in the working set. NativeAssetID links the
// photo back to the platform library; photos imported from disk have none.
type Photo struct {
	ID            string
	SourceName    string
	NativeAssetID string
	Data          []byte
	Flagged       bool
	Faces         []face.Face
}

// Run is the mutable working set of a single erase attempt. All methods are
// safe for concurrent use; the HTTP layer calls them from multiple requests.
type Run struct {
	ID        string
	CreatedAt time.Time

	mu         sync.RWMutex
	label      string
	photos     []*Photo
	byID       map[string]*Photo
	candidates []face.Face
	reference  *face.Face
}

// NewRun creates an empty run. Pass an empty id to get a generated one.
func NewRun(id string) *Run {
	if id == "" {
		id = uuid.NewString()
	}
	return &Run{
		ID:        id,
		CreatedAt: time.Now(),
		byID:      make(map[string]*Photo),
	}
}

// SetLabel names the run, usually after the person being erased.
func (r *Run) SetLabel(label string) {
	r.mu.Lock()
	r.label = label
	r.mu.Unlock()
}

// Label returns the run's name, empty when never set.
func (r *Run) Label() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.label
}

// MatchesLabel reports whether the given name refers to this run after
// normalization, so "Noemi" finds a run labelled "noémi".
func (r *Run) MatchesLabel(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.label != "" && NormalizeSourceName(r.label) == NormalizeSourceName(name)
}

// AddPhoto appends a photo to the working set and returns its ID.
// Insertion order is preserved; it defines batch processing order.
func (r *Run) AddPhoto(p Photo) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	stored := p
	r.photos = append(r.photos, &stored)
	r.byID[stored.ID] = &stored
	return stored.ID
}

// Photos returns a snapshot of the working set in insertion order.
func (r *Run) Photos() []Photo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Photo, len(r.photos))
	for i, p := range r.photos {
		out[i] = *p
	}
	return out
}

// Photo returns a single photo by ID.
func (r *Run) Photo(id string) (Photo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return Photo{}, false
	}
	return *p, true
}

// Count returns the number of photos in the working set.
func (r *Run) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.photos)
}

// SetFaces records the detection result for a photo. Missing photos are
// ignored; the batch may legitimately reference photos removed meanwhile.
func (r *Run) SetFaces(photoID string, faces []face.Face) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byID[photoID]; ok {
		p.Faces = faces
	}
}

// SetCandidates stores the deduplicated candidate faces and clears any
// previously selected reference.
func (r *Run) SetCandidates(candidates []face.Face) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.candidates = candidates
	r.reference = nil
}

// Candidates returns the deduplicated candidate faces.
func (r *Run) Candidates() []face.Face {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]face.Face, len(r.candidates))
	copy(out, r.candidates)
	return out
}

// SelectReference picks one of the run's candidates as the reference face.
func (r *Run) SelectReference(faceID string) (face.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.candidates {
		if r.candidates[i].ID == faceID {
			ref := r.candidates[i]
			r.reference = &ref
			return ref, nil
		}
	}
	return face.Face{}, fmt.Errorf("%w: %s", ErrUnknownCandidate, faceID)
}

// Reference returns the selected reference face.
func (r *Run) Reference() (face.Face, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.reference == nil {
		return face.Face{}, ErrNoReference
	}
	return *r.reference, nil
}

// SetFlags stores the per-photo decision result. The flags slice must align
// with the insertion order returned by Photos.
func (r *Run) SetFlags(flags []bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(flags) != len(r.photos) {
		return fmt.Errorf("flag count %d does not match photo count %d", len(flags), len(r.photos))
	}
	for i, p := range r.photos {
		p.Flagged = flags[i]
	}
	return nil
}

// FlaggedPhotos returns the photos marked by the last decision pass.
func (r *Run) FlaggedPhotos() []Photo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Photo
	for _, p := range r.photos {
		if p.Flagged {
			out = append(out, *p)
		}
	}
	return out
}

// RemovePhotos drops the given photos from the working set and returns how
// many were actually present. Unknown IDs are skipped.
func (r *Run) RemovePhotos(photoIDs []string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := make(map[string]bool, len(photoIDs))
	for _, id := range photoIDs {
		if _, ok := r.byID[id]; ok {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return 0
	}

	kept := r.photos[:0]
	for _, p := range r.photos {
		if drop[p.ID] {
			delete(r.byID, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	r.photos = kept
	return len(drop)
}

// FindBySource returns photos whose source name matches the given name after
// normalization (lowercase, no diacritics, dashes as spaces).
func (r *Run) FindBySource(name string) []Photo {
	want := NormalizeSourceName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Photo
	for _, p := range r.photos {
		if NormalizeSourceName(p.SourceName) == want {
			out = append(out, *p)
		}
	}
	return out
}
