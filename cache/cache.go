package cache

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/fragcache/internal/singleflight"
	"github.com/IvanBrykalov/fragcache/internal/util"
	"github.com/IvanBrykalov/fragcache/policy/lru"
)

// ErrNoLoader is returned by GetOrLoad when Options.Loader is nil.
var ErrNoLoader = errors.New("cache: no Loader provided")

type cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	closed atomic.Bool

	opt Options[K, V]
	sf  singleflight.Group[K, V]
}

var _ Cache[string, int] = (*cache[string, int])(nil)

// New constructs a cache. It panics if Capacity <= 0.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.Capacity <= 0 {
		panic("cache: Capacity must be > 0")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K, V]()
	}

	n := util.ShardCount(opt.Shards)
	perShard := (opt.Capacity + n - 1) / n
	shards := make([]*shard[K, V], n)
	for i := range shards {
		shards[i] = newShard(perShard, n, opt.Policy, opt)
	}

	return &cache[K, V]{
		shards: shards,
		hash:   util.Hash64[K],
		opt:    opt,
	}
}

func (c *cache[K, V]) Add(k K, v V) bool {
	if c.closed.Load() {
		return false
	}
	return c.shardFor(k).Add(k, v, c.deadline(c.opt.DefaultTTL), c.costOf(v))
}

func (c *cache[K, V]) Set(k K, v V) {
	c.SetWithTTL(k, v, c.opt.DefaultTTL)
}

func (c *cache[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	c.shardFor(k).Set(k, v, c.deadline(ttl), c.costOf(v))
}

func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.shardFor(k).Get(k)
}

// GetOrAdd on a closed cache returns mk() without storing it.
func (c *cache[K, V]) GetOrAdd(k K, mk func() V) (V, bool) {
	if c.closed.Load() {
		return mk(), false
	}
	return c.shardFor(k).GetOrAdd(k, mk, c.deadline(c.opt.DefaultTTL), c.costOf)
}

func (c *cache[K, V]) Contains(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.shardFor(k).Contains(k)
}

func (c *cache[K, V]) Remove(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.shardFor(k).Remove(k)
}

func (c *cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

func (c *cache[K, V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
		st.Entries += s.Len()
	}
	return st
}

func (c *cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	v, err, _ := c.sf.Do(ctx, k, func() (V, error) {
		// A previous flight may have stored k while we were queueing.
		if v, ok := c.Get(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err == nil {
			c.Set(k, v)
		}
		return v, err
	})
	return v, err
}

func (c *cache[K, V]) shardFor(k K) *shard[K, V] {
	return c.shards[util.ShardIndex(c.hash(k), len(c.shards))]
}

// deadline converts a relative TTL into an absolute UnixNano deadline.
func (c *cache[K, V]) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	now := time.Now().UnixNano()
	if c.opt.Clock != nil {
		now = c.opt.Clock.NowUnixNano()
	}
	return now + int64(ttl)
}

// costOf clamps the user cost into [0, MaxInt32].
func (c *cache[K, V]) costOf(v V) int32 {
	if c.opt.Cost == nil {
		return 0
	}
	return int32(min(max(c.opt.Cost(v), 0), math.MaxInt32))
}
