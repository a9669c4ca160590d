package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/verdia-ai/verdia/pkg/clock"
	"github.com/verdia-ai/verdia/pkg/models"
)

// MemoryStore is an in-process response cache. Entries live until their TTL
// passes; expired entries are evicted lazily when looked up.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
	ttl     time.Duration
	clock   clock.Clock
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemoryStore creates a MemoryStore with the given TTL. A nil clk defaults
// to the system clock.
func NewMemoryStore(ttl time.Duration, clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryStore{
		entries: make(map[string]*models.CacheEntry),
		ttl:     ttl,
		clock:   clk,
	}
}

// Lookup implements Store. A hit increments the entry's hit count and
// refreshes its last-used time; an expired entry behaves as a miss and is
// removed.
func (s *MemoryStore) Lookup(ctx context.Context, fingerprint string) (*models.CacheEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	now := s.clock.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	if !ok {
		s.misses.Add(1)
		return nil, false, nil
	}
	if e.Expired(now) {
		delete(s.entries, fingerprint)
		s.misses.Add(1)
		return nil, false, nil
	}

	e.HitCount++
	e.LastUsedAt = now
	s.hits.Add(1)
	cp := *e
	return &cp, true, nil
}

// Put implements Store. Storing an existing fingerprint replaces the body and
// refreshes the expiry while preserving the original creation time.
func (s *MemoryStore) Put(ctx context.Context, fingerprint string, body []byte) (*models.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	if !ok {
		e = &models.CacheEntry{
			Fingerprint: fingerprint,
			CreatedAt:   now,
		}
		s.entries[fingerprint] = e
	}
	e.Body = body
	e.LastUsedAt = now
	e.ExpiresAt = now.Add(s.ttl)
	cp := *e
	return &cp, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context) (models.CacheStats, error) {
	s.mu.Lock()
	n := int64(len(s.entries))
	s.mu.Unlock()
	return models.CacheStats{
		Entries: n,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context, expiredOnly bool) error {
	now := s.clock.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !expiredOnly {
		s.entries = make(map[string]*models.CacheEntry)
		return nil
	}
	for fp, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, fp)
		}
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
