// Package sqlite persists the response cache so cached answers survive
// process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/verdia-ai/verdia/pkg/clock"
	"github.com/verdia-ai/verdia/pkg/models"
)

// Store is a fingerprint-keyed response cache backed by SQLite.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	clock  clock.Clock
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	fingerprint TEXT PRIMARY KEY,
	body BLOB NOT NULL,
	hit_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	last_used_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);
`

// New creates a Store at the given database path with a default TTL.
// A nil clk defaults to the system clock.
func New(dbPath string, ttl time.Duration, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.System{}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return &Store{db: db, ttl: ttl, clock: clk}, nil
}

// Lookup retrieves a cached entry. Expired entries behave as misses and are
// removed; hits increment the entry's hit count and refresh last_used_at.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (*models.CacheEntry, bool, error) {
	now := s.clock.Now().UTC()

	var e models.CacheEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, body, hit_count, created_at, last_used_at, expires_at
		 FROM cache_entries WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&e.Fingerprint, &e.Body, &e.HitCount, &e.CreatedAt, &e.LastUsedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}

	if e.Expired(now) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE fingerprint = ?`, fingerprint); err != nil {
			return nil, false, fmt.Errorf("cache evict: %w", err)
		}
		s.misses.Add(1)
		return nil, false, nil
	}

	e.HitCount++
	e.LastUsedAt = now
	if _, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1, last_used_at = ? WHERE fingerprint = ?`,
		now, fingerprint,
	); err != nil {
		return nil, false, fmt.Errorf("cache touch: %w", err)
	}

	s.hits.Add(1)
	return &e, true, nil
}

// Put upserts an entry by fingerprint. An existing entry keeps its created_at
// and hit count while the body and expiry are refreshed.
func (s *Store) Put(ctx context.Context, fingerprint string, body []byte) (*models.CacheEntry, error) {
	now := s.clock.Now().UTC()
	expires := now.Add(s.ttl)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (fingerprint, body, hit_count, created_at, last_used_at, expires_at)
		 VALUES (?, ?, 0, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
			body = excluded.body,
			last_used_at = excluded.last_used_at,
			expires_at = excluded.expires_at`,
		fingerprint, body, now, now, expires,
	)
	if err != nil {
		return nil, fmt.Errorf("cache put: %w", err)
	}

	var e models.CacheEntry
	err = s.db.QueryRowContext(ctx,
		`SELECT fingerprint, body, hit_count, created_at, last_used_at, expires_at
		 FROM cache_entries WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&e.Fingerprint, &e.Body, &e.HitCount, &e.CreatedAt, &e.LastUsedAt, &e.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("cache put readback: %w", err)
	}
	return &e, nil
}

// Stats returns cache performance metrics.
func (s *Store) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries
// are removed.
func (s *Store) Clear(ctx context.Context, expiredOnly bool) error {
	var err error
	if expiredOnly {
		_, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, s.clock.Now().UTC())
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	}
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
