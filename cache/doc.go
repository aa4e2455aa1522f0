// Package cache is a generic, sharded, in-memory LRU store. It is the
// storage layer under the fragment memo and the in-memory payload store.
//
// Design
//
//   - Concurrency: keys are spread over power-of-two shards by xxhash, each
//     shard guarded by its own mutex.
//
//   - Storage: a map[K]*node index plus an intrusive MRU↔LRU list per
//     shard. Every operation is O(1) expected.
//
//   - Ordering: the policy package decides placement; the default is strict
//     LRU. With Shards: 1 the order and the Capacity bound are global,
//     which is what the fragment memo relies on.
//
//   - Admission: when a full shard admits a key, the LRU entry is evicted
//     before the new one is linked, so Len never exceeds the shard budget.
//
//   - GetOrAdd: lookup-or-insert in one critical section. Storing a handle
//     to in-flight work (a future) through GetOrAdd gives single-flight
//     semantics per resident key.
//
//   - TTL: per-entry deadlines, checked lazily on access.
//
//   - GetOrLoad: loader-based read-through with coalesced concurrent loads.
//     Failed loads are not cached.
//
//   - Metrics and OnEvict: Hit/Miss/Evict/Size signals and an eviction
//     callback (reason: policy, ttl or capacity).
//
// Usage
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    Capacity: 100,
//	    Shards:   1,
//	})
//	v, loaded := c.GetOrAdd("k", func() string { return "v" })
package cache
