package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGroup_CoalescesConcurrentCalls(t *testing.T) {
	var g Group[string, int]
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make([]int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err, _ := g.Do(context.Background(), "k", func() (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = v
		}(i)
	}

	// Give followers time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fn must run once, ran %d times", got)
	}
	for i, v := range results {
		if v != 7 {
			t.Fatalf("caller %d got %d", i, v)
		}
	}
}

func TestGroup_FollowerCancellation(t *testing.T) {
	var g Group[string, int]
	release := make(chan struct{})
	started := make(chan struct{})

	leaderDone := make(chan int)
	go func() {
		v, _, _ := g.Do(context.Background(), "k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		leaderDone <- v
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err, shared := g.Do(ctx, "k", func() (int, error) { return 2, nil })
	if !errors.Is(err, context.Canceled) || !shared {
		t.Fatalf("follower must observe its own cancellation, err=%v shared=%v", err, shared)
	}

	close(release)
	if v := <-leaderDone; v != 1 {
		t.Fatalf("leader result must be unaffected, got %d", v)
	}
}

func TestGroup_PanicBecomesError(t *testing.T) {
	var g Group[string, int]
	_, err, _ := g.Do(context.Background(), "k", func() (int, error) { panic("boom") })
	if err == nil {
		t.Fatal("panic must surface as an error")
	}

	// The key is free again after the panicking call.
	v, err, _ := g.Do(context.Background(), "k", func() (int, error) { return 3, nil })
	if err != nil || v != 3 {
		t.Fatalf("second call: v=%d err=%v", v, err)
	}
}
