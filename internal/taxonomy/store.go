package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

// Store loads taxonomies from a Source and caches them for its lifetime.
// Missing taxonomies are cached as empty so repeated lookups stay cheap.
type Store struct {
	source Source
	cache  map[Key]Taxonomy
	mu     sync.RWMutex
}

// NewStore creates a Store backed by source.
func NewStore(source Source) *Store {
	return &Store{
		source: source,
		cache:  make(map[Key]Taxonomy),
	}
}

// Load returns the taxonomy for an exam and subject. It never fails: a
// missing or unreadable taxonomy is logged and returned as empty. Read
// errors other than ErrNotFound are not cached. Each call returns its own
// copy, so callers may modify it.
func (s *Store) Load(ctx context.Context, examType exam.Type, subject exam.Subject) Taxonomy {
	key := Key{Exam: examType, Subject: subject}

	s.mu.RLock()
	t, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return slices.Clone(t)
	}

	t, err := s.source.Read(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		slog.Warn("no reference taxonomy", "key", key.String())
		t = Taxonomy{}
	case err != nil:
		slog.Error("failed to read reference taxonomy", "key", key.String(), "error", err)
		return Taxonomy{}
	default:
		slog.Info("reference taxonomy loaded", "key", key.String(), "entries", len(t))
	}

	if t == nil {
		t = Taxonomy{}
	}

	s.mu.Lock()
	s.cache[key] = t
	s.mu.Unlock()
	return slices.Clone(t)
}

// Stats reports the entry count of every taxonomy the source holds.
func (s *Store) Stats(ctx context.Context) ([]Stat, error) {
	keys, err := s.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list taxonomies: %w", err)
	}

	stats := make([]Stat, 0, len(keys))
	for _, key := range keys {
		t, err := s.source.Read(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		stats = append(stats, Stat{
			ExamType: string(key.Exam),
			Subject:  string(key.Subject),
			Count:    len(t),
		})
	}
	return stats, nil
}

// ClearCache drops every cached taxonomy.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cache)
}
