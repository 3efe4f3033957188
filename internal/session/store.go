package session

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Store keeps runs by ID. The context is unused by the in-memory
// implementation but kept so database-backed stores share the interface.
type Store interface {
	Create(ctx context.Context) (*Run, error)
	Get(ctx context.Context, id string) (*Run, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Run, error)
	Restore(ctx context.Context, run *Run) error
}

// MemoryStore is the default in-process store.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

func (s *MemoryStore) Create(_ context.Context) (*Run, error) {
	run := NewRun("")

	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	return run, nil
}

// Restore inserts an already built run, replacing any run with the same ID.
// Used when rehydrating persisted snapshots at startup.
func (s *MemoryStore) Restore(_ context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("cannot restore a run without an ID")
	}

	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	return nil
}

// Get resolves a run by ID, falling back to a normalized label match so a
// run named after a person can be addressed by that name.
func (s *MemoryStore) Get(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if run, ok := s.runs[id]; ok {
		return run, nil
	}
	for _, run := range s.runs {
		if run.MatchesLabel(id) {
			return run, nil
		}
	}
	return nil, ErrRunNotFound
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return ErrRunNotFound
	}
	delete(s.runs, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
