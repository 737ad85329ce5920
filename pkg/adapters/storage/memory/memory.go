package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/vocalmetrics/internal/domain"
	"github.com/aescanero/vocalmetrics/internal/ports"
)

type entry struct {
	analysis  *domain.Analysis
	expiresAt time.Time
}

// InMemoryAnalysisStorage implements AnalysisStorage using in-memory maps.
// Entries expire ttl after their last Save.
type InMemoryAnalysisStorage struct {
	analyses map[string]entry
	digests  map[string]string
	ttl      time.Duration
	swept    time.Time
	mu       sync.RWMutex

	now func() time.Time
}

// NewInMemoryAnalysisStorage creates a new in-memory analysis storage.
// A ttl of zero or less keeps analyses until they are deleted.
func NewInMemoryAnalysisStorage(ttl time.Duration) *InMemoryAnalysisStorage {
	return &InMemoryAnalysisStorage{
		analyses: make(map[string]entry),
		digests:  make(map[string]string),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Save stores a copy of the analysis and drops expired entries
func (s *InMemoryAnalysisStorage) Save(ctx context.Context, analysis *domain.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	e := entry{analysis: copyAnalysis(analysis)}
	if s.ttl > 0 {
		e.expiresAt = now.Add(s.ttl)
	}
	s.analyses[analysis.ID] = e
	if analysis.Status == domain.AnalysisStatusCompleted && analysis.Digest != "" {
		s.digests[analysis.Digest] = analysis.ID
	}
	return nil
}

// Get returns a copy of the analysis with the given id
func (s *InMemoryAnalysisStorage) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, ports.ErrNotFound)
	}
	return copyAnalysis(e.analysis), nil
}

// FindByDigest returns the completed analysis indexed under digest
func (s *InMemoryAnalysisStorage) FindByDigest(ctx context.Context, digest string) (*domain.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.digests[digest]
	if !ok {
		return nil, fmt.Errorf("digest %s: %w", digest, ports.ErrNotFound)
	}
	e, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("digest %s: %w", digest, ports.ErrNotFound)
	}
	return copyAnalysis(e.analysis), nil
}

// Delete removes an analysis and its digest entry
func (s *InMemoryAnalysisStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(id)
	return nil
}

// size counts stored analyses, expired ones included until the next sweep
func (s *InMemoryAnalysisStorage) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.analyses)
}

// Ping always succeeds
func (s *InMemoryAnalysisStorage) Ping(ctx context.Context) error {
	return nil
}

// lookup returns the live entry for id. Callers hold the lock.
func (s *InMemoryAnalysisStorage) lookup(id string) (entry, bool) {
	e, ok := s.analyses[id]
	if !ok || e.expired(s.now()) {
		return entry{}, false
	}
	return e, true
}

// sweep drops expired entries at most once per ttl. Callers hold the write lock.
func (s *InMemoryAnalysisStorage) sweep(now time.Time) {
	if s.ttl <= 0 || now.Sub(s.swept) < s.ttl {
		return
	}
	s.swept = now
	for id, e := range s.analyses {
		if e.expired(now) {
			s.remove(id)
		}
	}
}

func (s *InMemoryAnalysisStorage) remove(id string) {
	if e, ok := s.analyses[id]; ok && s.digests[e.analysis.Digest] == id {
		delete(s.digests, e.analysis.Digest)
	}
	delete(s.analyses, id)
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// copyAnalysis avoids sharing mutable state with callers
func copyAnalysis(a *domain.Analysis) *domain.Analysis {
	c := *a
	if a.Metrics != nil {
		m := *a.Metrics
		c.Metrics = &m
	}
	if a.Details != nil {
		d := *a.Details
		c.Details = &d
	}
	return &c
}
