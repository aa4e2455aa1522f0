// Package lru implements strict least-recently-used ordering: admission and
// every access move the entry to the MRU end, the shard trims from the LRU
// end.
package lru

import "github.com/IvanBrykalov/fragcache/policy"

type lru[K comparable, V any] struct {
	h policy.Hooks[K, V]
}

type factory[K comparable, V any] struct{}

// New returns the LRU policy factory. It is the cache default.
func New[K comparable, V any]() policy.Policy[K, V] { return factory[K, V]{} }

func (factory[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &lru[K, V]{h: h}
}

// OnAdd admits n as MRU. Victims are chosen by the shard's capacity trim,
// so no candidate is nominated here.
func (p *lru[K, V]) OnAdd(n policy.Node[K, V]) policy.Node[K, V] {
	p.h.PushFront(n)
	return nil
}

func (p *lru[K, V]) OnGet(n policy.Node[K, V])    { p.h.MoveToFront(n) }
func (p *lru[K, V]) OnUpdate(n policy.Node[K, V]) { p.h.MoveToFront(n) }
func (p *lru[K, V]) OnRemove(policy.Node[K, V])   {}
