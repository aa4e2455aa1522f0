package store

import (
	"context"
	"time"

	"github.com/IvanBrykalov/fragcache/cache"
)

// MemoryOptions configures a Memory store.
type MemoryOptions struct {
	// Capacity bounds the number of fragments (default 1024).
	Capacity int
	// MaxBytes bounds the summed payload size; 0 disables the budget.
	// Both budgets are split across shards.
	MaxBytes int64
	// Shards defaults to the cache's automatic shard count.
	Shards int

	Metrics cache.Metrics
	Clock   cache.Clock
}

// Memory is an in-process Store on top of the sharded LRU cache. Expired
// fragments are dropped lazily on access.
type Memory struct {
	c cache.Cache[string, string]
}

// NewMemory builds a Memory store.
func NewMemory(opt MemoryOptions) *Memory {
	if opt.Capacity <= 0 {
		opt.Capacity = 1024
	}
	return &Memory{c: cache.New(cache.Options[string, string]{
		Capacity: opt.Capacity,
		Shards:   opt.Shards,
		Cost:     func(p string) int { return len(p) },
		MaxCost:  opt.MaxBytes,
		Metrics:  opt.Metrics,
		Clock:    opt.Clock,
	})}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, ok := m.c.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	return p, nil
}

func (m *Memory) Put(ctx context.Context, key, payload string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.c.SetWithTTL(key, payload, ttl)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.c.Remove(key)
	return nil
}

// Len returns the number of resident fragments, including expired ones not
// yet observed.
func (m *Memory) Len() int { return m.c.Len() }

// Close releases the underlying cache.
func (m *Memory) Close() error { return m.c.Close() }

var _ Store = (*Memory)(nil)
