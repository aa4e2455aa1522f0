package store_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/fragcache/store"
)

type fakeClock struct{ now atomic.Int64 }

func (c *fakeClock) NowUnixNano() int64     { return c.now.Load() }
func (c *fakeClock) Advance(d time.Duration)     { c.now.Add(int64(d)) }

func TestMemory_PutGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := store.NewMemory(store.MemoryOptions{})
	defer m.Close()

	_, err := m.Get(ctx, "readme:u/r")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, m.Put(ctx, "readme:u/r", "0:\"x\"\n", 0))
	got, err := m.Get(ctx, "readme:u/r")
	require.NoError(t, err)
	assert.Equal(t, "0:\"x\"\n", got)

	require.NoError(t, m.Delete(ctx, "readme:u/r"))
	_, err = m.Get(ctx, "readme:u/r")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, m.Put(ctx, "", "x", 0), store.ErrEmptyKey)
}

func TestMemory_FreshnessWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := &fakeClock{}
	clk.now.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	m := store.NewMemory(store.MemoryOptions{Clock: clk})

	require.NoError(t, m.Put(ctx, "k", "payload", time.Minute))
	clk.Advance(59 * time.Second)
	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	clk.Advance(2 * time.Second)
	_, err = m.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemory_ByteBudget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := store.NewMemory(store.MemoryOptions{Capacity: 100, MaxBytes: 10, Shards: 1})
	require.NoError(t, m.Put(ctx, "a", strings.Repeat("a", 6), 0))
	require.NoError(t, m.Put(ctx, "b", strings.Repeat("b", 6), 0))

	_, err := m.Get(ctx, "a")
	require.ErrorIs(t, err, store.ErrNotFound, "oldest fragment evicted to fit the byte budget")
	_, err = m.Get(ctx, "b")
	require.NoError(t, err)
}

func TestMemory_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := store.NewMemory(store.MemoryOptions{})
	require.ErrorIs(t, m.Put(ctx, "k", "v", 0), context.Canceled)
	_, err := m.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}

func TestConnect_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := store.Connect(context.Background(), "not-a-url://", 1, time.Millisecond)
	require.ErrorIs(t, err, store.ErrRedisURL)
}
