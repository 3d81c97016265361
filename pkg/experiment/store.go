package experiment

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store persists experiment snapshots. Save replaces the stored snapshot
// for the experiment id.
type Store interface {
	Save(ctx context.Context, exp *Experiment) error
	Load(ctx context.Context, id string) (*Experiment, error)
	List(ctx context.Context) ([]*Experiment, error)
	Close() error
}

// MemoryStore is an in-memory Store. It stores and returns copies.
type MemoryStore struct {
	mu          sync.RWMutex
	experiments map[string]*Experiment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{experiments: make(map[string]*Experiment)}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, exp *Experiment) error {
	if err := ctx.Err(); err != nil {
		return newStorageError("memory", "save", err)
	}
	s.mu.Lock()
	s.experiments[exp.ID] = exp.Clone()
	s.mu.Unlock()
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, id string) (*Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.experiments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return exp.Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) ([]*Experiment, error) {
	s.mu.RLock()
	out := make([]*Experiment, 0, len(s.experiments))
	for _, exp := range s.experiments {
		out = append(out, exp.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
