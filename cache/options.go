package cache

import (
	"context"
	"time"

	"github.com/IvanBrykalov/fragcache/policy"
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictPolicy: chosen by the eviction policy to make room.
	EvictPolicy EvictReason = iota
	// EvictTTL: expired, detected lazily on access.
	EvictTTL
	// EvictCapacity: removed to satisfy MaxCost.
	EvictCapacity
)

func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	case EvictCapacity:
		return "capacity"
	default:
		return "policy"
	}
}

// Metrics receives cache-level observability signals.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int, cost int64)
}

// Clock provides time in UnixNano; tests substitute a fake one.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache. Zero values are safe; New applies:
//   - nil Policy   => LRU
//   - Shards <= 0  => auto (power of two, about 2*GOMAXPROCS)
//   - nil Metrics  => NoopMetrics
type Options[K comparable, V any] struct {
	// Capacity is the entry count limit. It is split evenly (rounded up)
	// across shards, so only Shards: 1 gives an exact global bound and a
	// global LRU order.
	Capacity int

	// Shards is rounded up to a power of two.
	Shards int

	// Policy defaults to strict LRU.
	Policy policy.Policy[K, V]

	// DefaultTTL applies to Add/Set/GetOrAdd (0 = no TTL).
	DefaultTTL time.Duration

	// Cost weighs values when MaxCost > 0; the cache evicts until both the
	// count and the cost budget hold.
	Cost    func(v V) int
	MaxCost int64

	// Loader fetches a value on miss for GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// OnEvict runs under the shard lock for every eviction; keep it light.
	OnEvict func(k K, v V, reason EvictReason)
	Metrics Metrics

	// Clock overrides time.Now for TTL bookkeeping.
	Clock Clock
}
