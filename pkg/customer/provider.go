package customer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a customer record does not exist.
var ErrNotFound = errors.New("customer not found")

// Provider returns enriched customer records.
type Provider interface {
	// Get returns the normalized record for id, or an error wrapping
	// ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
}

// StaticProvider serves records from memory. Callers always receive a copy.
type StaticProvider struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewStaticProvider creates a provider holding the given records.
func NewStaticProvider(records ...*Record) *StaticProvider {
	p := &StaticProvider{records: make(map[string]*Record, len(records))}
	for _, r := range records {
		p.Put(r)
	}
	return p
}

// Get implements Provider.
func (p *StaticProvider) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	r, ok := p.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

// Put stores a normalized copy of r, replacing any record with the same id.
func (p *StaticProvider) Put(r *Record) {
	c := r.Clone().Normalize()

	p.mu.Lock()
	p.records[c.ID] = c
	p.mu.Unlock()
}

// IDs returns the known customer ids in sorted order.
func (p *StaticProvider) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.records))
	for id := range p.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// fixtureFile is the on-disk layout of a customer fixtures file.
type fixtureFile struct {
	Customers []*Record `yaml:"customers"`
}

// LoadFile reads customer records from a YAML fixtures file.
func LoadFile(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read customer fixtures %q: %w", path, err)
	}

	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse customer fixtures %q: %w", path, err)
	}

	for i, r := range f.Customers {
		if r == nil || r.ID == "" {
			return nil, fmt.Errorf("customer fixtures %q: entry %d has no id", path, i)
		}
	}

	return NewStaticProvider(f.Customers...), nil
}
