// Package policy defines the contract between a cache shard and its
// eviction policy.
package policy

// Node is the view of a resident entry that a policy may inspect.
type Node[K comparable, V any] interface {
	Key() K
	Value() *V
}

// Hooks are the O(1) list operations a shard exposes to its policy.
// The list is ordered MRU (front) to LRU (back). Hooks touch only the
// list; the shard owns the key index. Every hook runs under the shard lock.
type Hooks[K comparable, V any] interface {
	MoveToFront(Node[K, V])
	PushFront(Node[K, V])
	Remove(Node[K, V])
	Back() Node[K, V]
	Len() int
}

// ShardPolicy is bound to one shard and called under its lock.
//
// OnAdd places a freshly admitted node and may nominate a victim; the shard
// evicts the victim and reports it back through OnRemove. OnGet and
// OnUpdate record a use of the node.
type ShardPolicy[K comparable, V any] interface {
	OnAdd(Node[K, V]) (evict Node[K, V])
	OnGet(Node[K, V])
	OnUpdate(Node[K, V])
	OnRemove(Node[K, V])
}

// Policy creates shard-local policy instances.
type Policy[K comparable, V any] interface {
	New(Hooks[K, V]) ShardPolicy[K, V]
}
