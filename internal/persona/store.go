package persona

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrNotFound is returned when a persona id has no record.
var ErrNotFound = errors.New("persona not found")

// Store supplies persona records by id.
type Store interface {
	Get(ctx context.Context, id string) (Persona, error)
	List(ctx context.Context) ([]Persona, error)
}

// GetMany resolves ids in order. Unknown ids fail the whole lookup so a call
// never silently starts with fewer participants than requested.
func GetMany(ctx context.Context, s Store, ids []string) ([]Persona, error) {
	out := make([]Persona, 0, len(ids))
	for _, id := range ids {
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("persona %q: %w", id, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// MemoryStore is a read-only in-process store, usually loaded from a JSON file.
type MemoryStore struct {
	byID  map[string]Persona
	order []string
}

// NewMemoryStore indexes personas by id. Personas without an id are keyed by name.
func NewMemoryStore(personas []Persona) (*MemoryStore, error) {
	s := &MemoryStore{byID: make(map[string]Persona, len(personas))}
	for _, p := range personas {
		id := p.ID
		if id == "" {
			id = p.Name
		}
		if id == "" {
			return nil, fmt.Errorf("persona at index %d has neither id nor name", len(s.order))
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", id)
		}
		s.byID[id] = p
		s.order = append(s.order, id)
	}
	return s, nil
}

// LoadFile reads a JSON array of personas from path.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas: %w", err)
	}
	list, err := ParseList(data)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(list)
}

func (s *MemoryStore) Get(_ context.Context, id string) (Persona, error) {
	p, ok := s.byID[id]
	if !ok {
		return Persona{}, ErrNotFound
	}
	return p, nil
}

// List returns personas in load order.
func (s *MemoryStore) List(_ context.Context) ([]Persona, error) {
	out := make([]Persona, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

// IDs returns the known ids sorted.
func (s *MemoryStore) IDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	sort.Strings(ids)
	return ids
}
