package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

type fakeClock struct{ t atomic.Int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t.Load() }
func (f *fakeClock) add(d time.Duration) { f.t.Add(int64(d)) }

type countingMetrics struct {
	hits, misses, evicts atomic.Int64
	lastSize             atomic.Int64
}

func (m *countingMetrics) Hit()                { m.hits.Add(1) }
func (m *countingMetrics) Miss()               { m.misses.Add(1) }
func (m *countingMetrics) Evict(EvictReason)   { m.evicts.Add(1) }
func (m *countingMetrics) Size(n int, _ int64) { m.lastSize.Store(int64(n)) }

// Per-entry TTL is respected under a fake clock.
func TestCache_TTL_FakeClock(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := New[string, string](Options[string, string]{Capacity: 4, Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	c.SetWithTTL("readme:octo/hello", "0:\"hi\"\n", 100*time.Millisecond)
	if _, ok := c.Get("readme:octo/hello"); !ok {
		t.Fatal("fresh miss")
	}
	clk.add(200 * time.Millisecond)
	if _, ok := c.Get("readme:octo/hello"); ok {
		t.Fatal("expired hit")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry must be evicted on access, Len=%d", c.Len())
	}
}

func TestCache_BasicAddSetGetRemove(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 8})
	t.Cleanup(func() { _ = c.Close() })

	if !c.Add("a", 1) {
		t.Fatal("Add a=1 must be true")
	}
	if c.Add("a", 2) {
		t.Fatal("Add duplicate must be false")
	}

	c.Set("a", 11)
	if v, ok := c.Get("a"); !ok || v != 11 {
		t.Fatalf("Get a want 11, got %v ok=%v", v, ok)
	}

	if !c.Remove("a") {
		t.Fatal("Remove a must be true")
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("a must be absent after Remove")
	}
}

// Accessing "a" promotes it; inserting "c" evicts the LRU entry "b".
func TestCache_EvictionLRU(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1)
	c.Set("b", 2)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("expect hit for a")
	}
	c.Set("c", 3)

	if c.Contains("b") {
		t.Fatal("b must be evicted")
	}
	if !c.Contains("a") || !c.Contains("c") {
		t.Fatal("a and c must survive")
	}
}

// Contains must not refresh recency: "a" stays LRU and is evicted.
func TestCache_ContainsDoesNotPromote(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1)
	c.Set("b", 2)
	if !c.Contains("a") {
		t.Fatal("a must be resident")
	}
	c.Set("c", 3)
	if c.Contains("a") {
		t.Fatal("a must be evicted: Contains must not promote")
	}
}

func TestCache_GetOrAdd(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c := New[string, string](Options[string, string]{Capacity: 2, Shards: 1, Metrics: m})
	t.Cleanup(func() { _ = c.Close() })

	var built int
	mk := func(v string) func() string {
		return func() string { built++; return v }
	}

	if v, loaded := c.GetOrAdd("a", mk("1")); loaded || v != "1" {
		t.Fatalf("first GetOrAdd: v=%q loaded=%v", v, loaded)
	}
	if v, loaded := c.GetOrAdd("a", mk("2")); !loaded || v != "1" {
		t.Fatalf("second GetOrAdd must return the resident value: v=%q loaded=%v", v, loaded)
	}
	if built != 1 {
		t.Fatalf("mk must run once, ran %d", built)
	}

	// "a" was promoted by the hit, so "b" is the LRU victim.
	c.GetOrAdd("b", mk("b"))
	c.GetOrAdd("a", mk("x"))
	c.GetOrAdd("c", mk("c"))
	if c.Contains("b") || !c.Contains("a") {
		t.Fatal("GetOrAdd hits must refresh recency")
	}
	if got := m.hits.Load(); got != 2 {
		t.Fatalf("hits=%d, want 2", got)
	}
	if got := m.evicts.Load(); got != 1 {
		t.Fatalf("evicts=%d, want 1", got)
	}
	if got := m.lastSize.Load(); got != 2 {
		t.Fatalf("size gauge=%d, want 2", got)
	}
}

// Concurrent GetOrAdd on one key builds exactly one value.
func TestCache_GetOrAdd_Concurrent(t *testing.T) {
	t.Parallel()

	c := New[string, *int](Options[string, *int]{Capacity: 16})
	t.Cleanup(func() { _ = c.Close() })

	var built atomic.Int32
	var first atomic.Pointer[int]

	var g errgroup.Group
	for i := 0; i < 64; i++ {
		g.Go(func() error {
			v, _ := c.GetOrAdd("k", func() *int {
				built.Add(1)
				return new(int)
			})
			if !first.CompareAndSwap(nil, v) && first.Load() != v {
				return errors.New("callers observed different values")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := built.Load(); got != 1 {
		t.Fatalf("mk must run once, ran %d", got)
	}
}

func TestCache_CapacityBound(t *testing.T) {
	t.Parallel()

	const capacity = 5
	c := New[int, int](Options[int, int]{Capacity: capacity, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 100; i++ {
		switch i % 3 {
		case 0:
			c.Set(i, i)
		case 1:
			c.GetOrAdd(i/2, func() int { return i })
		default:
			c.Get(i / 3)
		}
		if n := c.Len(); n > capacity {
			t.Fatalf("step %d: Len=%d exceeds capacity %d", i, n, capacity)
		}
	}
}

func TestCache_MaxCost(t *testing.T) {
	t.Parallel()

	var reasons []EvictReason
	c := New[string, string](Options[string, string]{
		Capacity: 10,
		Shards:   1,
		Cost:     func(v string) int { return len(v) },
		MaxCost:  10,
		OnEvict:  func(_ string, _ string, r EvictReason) { reasons = append(reasons, r) },
	})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", "aaaaa")
	c.Set("b", "bbbbb")
	c.Set("c", "ccc")

	if c.Contains("a") {
		t.Fatal("a must be evicted to honor MaxCost")
	}
	if len(reasons) != 1 || reasons[0] != EvictCapacity {
		t.Fatalf("want one capacity eviction, got %v", reasons)
	}
}

func TestCache_ClosedIgnoresWrites(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2})
	_ = c.Close()

	c.Set("a", 1)
	if c.Add("b", 2) {
		t.Fatal("Add on a closed cache must be false")
	}
	if v, loaded := c.GetOrAdd("c", func() int { return 3 }); loaded || v != 3 {
		t.Fatalf("GetOrAdd on a closed cache must pass mk's value through, got %v %v", v, loaded)
	}
	if c.Len() != 0 {
		t.Fatalf("closed cache must stay empty, Len=%d", c.Len())
	}
}

// Concurrent GetOrLoad calls for the same key run the Loader at most once.
func TestCache_GetOrLoad_Singleflight(t *testing.T) {
	var calls int64

	c := New[string, string](Options[string, string]{
		Capacity: 64,
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(5 * time.Millisecond)
			return "v:" + k, nil
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	const N = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < N; i++ {
		g.Go(func() error {
			v, err := c.GetOrLoad(ctx, "k")
			if err != nil {
				return err
			}
			if v != "v:k" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("loader must run exactly once, got %d", got)
	}
}

func TestCache_GetOrLoad_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	var calls int
	boom := errors.New("manifest unavailable")
	c := New[string, string](Options[string, string]{
		Capacity: 4,
		Loader: func(context.Context, string) (string, error) {
			calls++
			if calls == 1 {
				return "", boom
			}
			return "ok", nil
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	if _, err := c.GetOrLoad(context.Background(), "k"); !errors.Is(err, boom) {
		t.Fatalf("want loader error, got %v", err)
	}
	if v, err := c.GetOrLoad(context.Background(), "k"); err != nil || v != "ok" {
		t.Fatalf("retry must reload: v=%q err=%v", v, err)
	}
}

func TestCache_GetOrLoad_NoLoader(t *testing.T) {
	t.Parallel()

	c := New[string, string](Options[string, string]{Capacity: 1})
	if _, err := c.GetOrLoad(context.Background(), "k"); !errors.Is(err, ErrNoLoader) {
		t.Fatalf("want ErrNoLoader, got %v", err)
	}
}

// Stats sums the shard counters; Remove is not an eviction.
func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2, Shards: 1})
	t.Cleanup(func() { _ = c.Close() })

	if got := c.Stats().HitRate(); got != 0 {
		t.Fatalf("HitRate before lookups = %v, want 0", got)
	}
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("zzz")
	c.Set("c", 3) // evicts "b"
	c.Remove("a")

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("hits=%d misses=%d, want 1/1", st.Hits, st.Misses)
	}
	if st.Evictions != 1 {
		t.Fatalf("evictions=%d, want 1", st.Evictions)
	}
	if st.Entries != 1 {
		t.Fatalf("entries=%d, want 1", st.Entries)
	}
	if st.HitRate() != 0.5 {
		t.Fatalf("HitRate=%v, want 0.5", st.HitRate())
	}
}
