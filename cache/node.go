package cache

// node is an entry of a shard's intrusive MRU↔LRU list.
type node[K comparable, V any] struct {
	key K
	val V

	prev *node[K, V]
	next *node[K, V]

	exp  int64 // absolute UnixNano deadline, 0 = never
	cost int32
}

func (n *node[K, V]) Key() K { return n.key }

// Value exposes the stored value to the policy. Only valid under the shard lock.
func (n *node[K, V]) Value() *V { return &n.val }
