package cache

import (
	"context"
	"time"
)

// Cache is a sharded, in-memory key/value cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// Operations are amortized O(1): a map lookup plus constant-time list
// adjustments under a shard lock.
type Cache[K comparable, V any] interface {
	// Add inserts k→v only if k is not present, using DefaultTTL.
	// Returns false if the key already exists.
	Add(k K, v V) bool

	// Set inserts or updates k→v using DefaultTTL and promotes the entry.
	Set(k K, v V)

	// SetWithTTL is Set with a per-key TTL; ttl <= 0 disables expiration.
	SetWithTTL(k K, v V, ttl time.Duration)

	// Get returns the value for k and promotes it on hit.
	Get(k K) (V, bool)

	// GetOrAdd returns the resident value for k (promoting it), or calls mk
	// and inserts its result as MRU. The lookup and the insert happen under
	// one shard lock, so concurrent callers for the same key observe exactly
	// one mk call while the entry stays resident. mk runs with the lock held
	// and must not block or re-enter the cache. loaded reports a hit.
	GetOrAdd(k K, mk func() V) (v V, loaded bool)

	// Contains reports whether k is resident without changing its recency.
	Contains(k K) bool

	// Remove deletes k if present and returns true on success.
	Remove(k K) bool

	// Len returns the total number of resident entries across all shards.
	Len() int

	// Stats sums the per-shard counters.
	Stats() Stats

	// Close marks the cache closed; later operations are ignored.
	Close() error

	// GetOrLoad returns the value for k, loading it via Options.Loader on
	// miss. Concurrent loads for the same key are coalesced. Failed loads
	// are not stored. Without a Loader it returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)
}

// Stats is a snapshot of cache counters. Hits and Misses count Get and
// GetOrAdd lookups; Evictions excludes explicit Remove calls.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions uint64
	Entries   int
}

// HitRate returns Hits/(Hits+Misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	if n := s.Hits + s.Misses; n > 0 {
		return float64(s.Hits) / float64(n)
	}
	return 0
}
