// Package memo is a capacity-bounded, single-flight memo of asynchronous
// computations keyed by string.
//
// Each key maps to a future. The future is inserted before the computation
// starts, so every caller that arrives while the work is in flight, and
// every caller after it settles, shares the same outcome. Failures are
// cached like successes; a key is recomputed only after it is evicted or
// forgotten.
package memo

import (
	"log/slog"

	"github.com/IvanBrykalov/fragcache/cache"
	"github.com/IvanBrykalov/fragcache/future"
)

// DefaultCapacity is the entry budget used when Options.Capacity is unset.
const DefaultCapacity = 100

// Options configures a Cache.
type Options struct {
	// Capacity is the maximum number of resident keys (default 100).
	Capacity int
	// Metrics receives hit/miss/eviction signals of the underlying store.
	Metrics cache.Metrics
	Logger  *slog.Logger
}

// Cache memoizes computations producing V. It is safe for concurrent use.
type Cache[V any] struct {
	store cache.Cache[string, *future.Future[V]]
	log   *slog.Logger
}

// New builds a memo. The underlying store uses a single shard so the LRU
// order and the capacity bound are global.
func New[V any](opt Options) *Cache[V] {
	if opt.Capacity <= 0 {
		opt.Capacity = DefaultCapacity
	}
	log := opt.Logger
	if log == nil {
		log = slog.Default()
	}
	m := &Cache[V]{log: log}
	m.store = cache.New(cache.Options[string, *future.Future[V]]{
		Capacity: opt.Capacity,
		Shards:   1,
		Metrics:  opt.Metrics,
		OnEvict: func(key string, f *future.Future[V], _ cache.EvictReason) {
			log.Debug("memo entry evicted", "key_len", len(key), "settled", f.Settled())
		},
	})
	return m
}

// Get returns the future memoized under key, marking key most recently
// used. On a miss it stores a pending future, starts compute on its own
// goroutine and returns the pending future. compute runs at most once per
// resident key; a panic in compute rejects the future with future.ErrPanic.
func (m *Cache[V]) Get(key string, compute func() (V, error)) *future.Future[V] {
	var settle func(V, error)
	f, loaded := m.store.GetOrAdd(key, func() *future.Future[V] {
		var f *future.Future[V]
		f, settle = future.New[V]()
		return f
	})
	if !loaded && settle != nil {
		go future.Run(settle, compute)
	}
	return f
}

// Contains reports whether key is memoized without touching recency.
func (m *Cache[V]) Contains(key string) bool { return m.store.Contains(key) }

// Forget drops key so the next Get recomputes it. Waiters on the dropped
// future still receive its outcome.
func (m *Cache[V]) Forget(key string) bool { return m.store.Remove(key) }

// Stats reports hit, miss and eviction counts of the memo.
func (m *Cache[V]) Stats() cache.Stats { return m.store.Stats() }

// Len returns the number of memoized keys.
func (m *Cache[V]) Len() int { return m.store.Len() }
