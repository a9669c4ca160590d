// Package cache maps normalized-query fingerprints to previously produced
// provider responses so semantically identical questions are answered
// without paying the upstream API again.
package cache

import (
	"context"

	"github.com/verdia-ai/verdia/pkg/models"
)

// Store is the response cache contract. Lookup treats expired entries as
// misses and removes them; Put upserts by fingerprint, preserving the
// original creation time of an existing entry.
type Store interface {
	Lookup(ctx context.Context, fingerprint string) (*models.CacheEntry, bool, error)
	Put(ctx context.Context, fingerprint string, body []byte) (*models.CacheEntry, error)
	Stats(ctx context.Context) (models.CacheStats, error)
	Clear(ctx context.Context, expiredOnly bool) error
	Close() error
}
