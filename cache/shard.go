package cache

import (
	"sync"
	"time"

	"github.com/IvanBrykalov/fragcache/internal/util"
	"github.com/IvanBrykalov/fragcache/policy"
)

// shard is one partition of the cache: its own lock, index and intrusive
// doubly linked list (head=MRU, tail=LRU).
type shard[K comparable, V any] struct {
	mu      sync.Mutex
	m       map[K]*node[K, V]
	head    *node[K, V]
	tail    *node[K, V]
	len     int
	cost    int64
	cap     int
	maxCost int64 // 0 = disabled

	pol policy.ShardPolicy[K, V]
	opt Options[K, V]

	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicUint64
}

func newShard[K comparable, V any](capacity, shards int, pol policy.Policy[K, V], opt Options[K, V]) *shard[K, V] {
	s := &shard[K, V]{
		m:   make(map[K]*node[K, V], capacity),
		cap: capacity,
		opt: opt,
	}
	if opt.MaxCost > 0 {
		s.maxCost = (opt.MaxCost + int64(shards) - 1) / int64(shards)
	}
	s.pol = pol.New(shardHooks[K, V]{s: s})
	return s
}

// Add inserts a new entry; false if k is already resident.
func (s *shard[K, V]) Add(k K, v V, exp int64, cost int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		if !s.expiredLocked(n) {
			return false
		}
		s.evictNode(n, EvictTTL)
	}
	s.admitLocked(k, v, exp, cost)
	return true
}

// Set inserts or updates an entry and records the write as a use.
func (s *shard[K, V]) Set(k K, v V, exp int64, cost int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		s.cost += int64(cost) - int64(n.cost)
		n.val, n.exp, n.cost = v, exp, cost
		s.pol.OnUpdate(n)
		s.enforceLimitsLocked()
		return
	}
	s.admitLocked(k, v, exp, cost)
}

// Get returns a live value and promotes it. Expired entries are evicted
// and reported as misses.
func (s *shard[K, V]) Get(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.liveLocked(k); ok {
		s.pol.OnGet(n)
		s.hit()
		return n.val, true
	}
	s.miss()
	var zero V
	return zero, false
}

// GetOrAdd is Get falling back to admitting mk() in the same critical section.
func (s *shard[K, V]) GetOrAdd(k K, mk func() V, exp int64, costOf func(V) int32) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.liveLocked(k); ok {
		s.pol.OnGet(n)
		s.hit()
		return n.val, true
	}
	s.miss()
	v := mk()
	s.admitLocked(k, v, exp, costOf(v))
	return v, false
}

// Contains reports residency without promoting or counting.
func (s *shard[K, V]) Contains(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	return ok && !s.expiredLocked(n)
}

// Remove deletes k. Explicit removals are not counted as evictions.
func (s *shard[K, V]) Remove(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return false
	}
	s.pol.OnRemove(n)
	s.unlink(n)
	delete(s.m, k)
	s.opt.Metrics.Size(s.len, s.cost)
	return true
}

func (s *shard[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len
}

// -------------------- internals (mu held) --------------------

func (s *shard[K, V]) hit() {
	s.hits.Add(1)
	s.opt.Metrics.Hit()
}

func (s *shard[K, V]) miss() {
	s.misses.Add(1)
	s.opt.Metrics.Miss()
}

// liveLocked looks k up, evicting it first if its TTL has passed.
func (s *shard[K, V]) liveLocked(k K) (*node[K, V], bool) {
	n, ok := s.m[k]
	if !ok {
		return nil, false
	}
	if s.expiredLocked(n) {
		s.evictNode(n, EvictTTL)
		return nil, false
	}
	return n, true
}

// admitLocked makes room for one entry, then inserts k as MRU.
func (s *shard[K, V]) admitLocked(k K, v V, exp int64, cost int32) {
	for s.len >= s.cap && s.tail != nil {
		s.evictNode(s.tail, EvictPolicy)
	}
	n := &node[K, V]{key: k, val: v, exp: exp, cost: cost}
	s.m[k] = n
	if ev := s.pol.OnAdd(n); ev != nil {
		s.evictNode(ev.(*node[K, V]), EvictPolicy)
	}
	s.enforceLimitsLocked()
}

func (s *shard[K, V]) expiredLocked(n *node[K, V]) bool {
	return n.exp != 0 && s.now() > n.exp
}

func (s *shard[K, V]) now() int64 {
	if s.opt.Clock != nil {
		return s.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

func (s *shard[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
	s.cost += int64(n.cost)
}

func (s *shard[K, V]) moveToFront(n *node[K, V]) {
	if n == s.head {
		return
	}
	s.unlink(n)
	s.pushFront(n)
}

// unlink detaches n from the list and its counters.
func (s *shard[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
	s.cost -= int64(n.cost)
	if s.cost < 0 {
		s.cost = 0
	}
}

func (s *shard[K, V]) evictNode(n *node[K, V], reason EvictReason) {
	s.pol.OnRemove(n)
	s.unlink(n)
	delete(s.m, n.key)
	s.evicts.Add(1)
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil {
		cb(n.key, n.val, reason)
	}
}

// enforceLimitsLocked trims from the LRU end until count and cost fit.
func (s *shard[K, V]) enforceLimitsLocked() {
	for s.len > s.cap && s.tail != nil {
		s.evictNode(s.tail, EvictPolicy)
	}
	for s.maxCost > 0 && s.cost > s.maxCost && s.tail != nil {
		s.evictNode(s.tail, EvictCapacity)
	}
	s.opt.Metrics.Size(s.len, s.cost)
}

// -------------------- policy hooks --------------------

type shardHooks[K comparable, V any] struct{ s *shard[K, V] }

func (h shardHooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.s.moveToFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) PushFront(x policy.Node[K, V])   { h.s.pushFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) Remove(x policy.Node[K, V])      { h.s.unlink(x.(*node[K, V])) }
func (h shardHooks[K, V]) Back() policy.Node[K, V] {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
func (h shardHooks[K, V]) Len() int { return h.s.len }
