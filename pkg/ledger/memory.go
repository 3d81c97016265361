package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStorage keeps entries in an in-memory slice ordered by Seq.
type MemoryStorage struct {
	entries []*Entry
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append stores a copy of entry.
func (s *MemoryStorage) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.entries); n > 0 && entry.Seq <= s.entries[n-1].Seq {
		return NewStorageError("memory", "append",
			fmt.Errorf("seq %d not after %d", entry.Seq, s.entries[n-1].Seq))
	}
	s.entries = append(s.entries, entry.clone())
	return nil
}

// Last returns the most recent entry.
func (s *MemoryStorage) Last(ctx context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}
	return s.entries[len(s.entries)-1].clone(), nil
}

// Query returns copies of the matching entries.
func (s *MemoryStorage) Query(ctx context.Context, q *Query) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if q == nil {
		q = &Query{}
	}
	results := make([]*Entry, 0)
	n := len(s.entries)
	for i := 0; i < n; i++ {
		idx := n - 1 - i
		if q.Ascending {
			idx = i
		}
		e := s.entries[idx]
		if !q.matches(e) {
			continue
		}
		results = append(results, e.clone())
		if q.Limit > 0 && len(results) == q.Limit {
			break
		}
	}
	return results, nil
}

// Count returns the number of stored entries.
func (s *MemoryStorage) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

func (q *Query) matches(e *Entry) bool {
	if q.CustomerID != "" && e.CustomerID != q.CustomerID {
		return false
	}
	if q.DecisionID != "" && e.DecisionID != q.DecisionID {
		return false
	}
	if q.Kind != "" && e.Kind != q.Kind {
		return false
	}
	return true
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.Decision != nil {
		d := e.Decision.Clone()
		c.Decision = &d
	}
	if e.Guardrails != nil {
		c.Guardrails = make(map[string]bool, len(e.Guardrails))
		for k, v := range e.Guardrails {
			c.Guardrails[k] = v
		}
	}
	if e.Override != nil {
		o := *e.Override
		c.Override = &o
	}
	return &c
}
