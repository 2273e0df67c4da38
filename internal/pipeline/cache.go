package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
	"github.com/p-n-ai/exam-analyzer/internal/extract"
	"github.com/p-n-ai/exam-analyzer/internal/platform/cache"
)

// ErrCacheMiss is returned by a ResultCache that holds no entry for a key.
var ErrCacheMiss = cache.ErrMiss

// CachedAnalysis is the classifier's reconciled answer for one paper,
// stored before subtopic matching so reference updates still apply.
type CachedAnalysis struct {
	ExamType  exam.Type       `json:"exam_type"`
	Subject   exam.Subject    `json:"subject"`
	Questions []exam.Question `json:"questions"`
	Chunks    int             `json:"chunks"`
}

// ResultCache remembers analyses of papers that were already classified.
type ResultCache interface {
	Get(ctx context.Context, key string) (CachedAnalysis, error)
	Put(ctx context.Context, key string, a CachedAnalysis) error
}

// CacheKey identifies an analysis by document fingerprint and every input
// that changes the classifier's answer.
func CacheKey(fingerprint, model string, mode extract.Mode, examType exam.Type, subject exam.Subject) string {
	return strings.Join([]string{fingerprint, model, string(mode), string(examType), string(subject)}, ":")
}

// RedisResultCache stores analyses in Dragonfly/Redis as JSON.
type RedisResultCache struct {
	c   *cache.Cache
	ttl time.Duration
}

// NewRedisResultCache namespaces c under "analysis:".
func NewRedisResultCache(c *cache.Cache, ttl time.Duration) *RedisResultCache {
	return &RedisResultCache{c: c.WithPrefix("analysis:"), ttl: ttl}
}

func (r *RedisResultCache) Get(ctx context.Context, key string) (CachedAnalysis, error) {
	var a CachedAnalysis
	err := r.c.GetJSON(ctx, key, &a)
	return a, err
}

func (r *RedisResultCache) Put(ctx context.Context, key string, a CachedAnalysis) error {
	return r.c.SetJSON(ctx, key, a, r.ttl)
}

// MemoryResultCache is an unbounded in-process ResultCache.
type MemoryResultCache struct {
	entries map[string]CachedAnalysis
	mu      sync.RWMutex
}

func NewMemoryResultCache() *MemoryResultCache {
	return &MemoryResultCache{entries: make(map[string]CachedAnalysis)}
}

func (m *MemoryResultCache) Get(_ context.Context, key string) (CachedAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.entries[key]
	if !ok {
		return CachedAnalysis{}, ErrCacheMiss
	}
	a.Questions = append([]exam.Question(nil), a.Questions...)
	return a, nil
}

func (m *MemoryResultCache) Put(_ context.Context, key string, a CachedAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Questions = append([]exam.Question(nil), a.Questions...)
	m.entries[key] = a
	return nil
}
