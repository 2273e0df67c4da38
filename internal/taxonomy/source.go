package taxonomy

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by a Source that has no taxonomy for a key.
var ErrNotFound = errors.New("taxonomy not found")

// Source reads stored taxonomies.
type Source interface {
	// Read returns the taxonomy for key, or ErrNotFound.
	Read(ctx context.Context, key Key) (Taxonomy, error)
	// List returns the keys of every stored taxonomy.
	List(ctx context.Context) ([]Key, error)
}

// MemorySource serves taxonomies from a map. It counts reads so tests can
// observe caching.
type MemorySource struct {
	mu    sync.Mutex
	data  map[Key]Taxonomy
	reads int
}

// NewMemorySource creates a MemorySource holding data.
func NewMemorySource(data map[Key]Taxonomy) *MemorySource {
	if data == nil {
		data = make(map[Key]Taxonomy)
	}
	return &MemorySource{data: data}
}

// Put stores or replaces a taxonomy.
func (s *MemorySource) Put(key Key, t Taxonomy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = t
}

func (s *MemorySource) Read(_ context.Context, key Key) (Taxonomy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	t, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append(Taxonomy(nil), t...), nil
}

func (s *MemorySource) List(_ context.Context) ([]Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]Key, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// Reads returns how many times Read was called.
func (s *MemorySource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
