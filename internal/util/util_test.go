package util

import "testing"

func TestNextPow2(t *testing.T) {
	t.Parallel()

	cases := map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 64: 64, 65: 128}
	for in, want := range cases {
		if got := NextPow2(in); got != want {
			t.Fatalf("NextPow2(%d) = %d, want %d", in, got, want)
		}
	}
	if got := NextPow2(1<<63 + 1); got != 1<<63 {
		t.Fatalf("overflow must clamp to 1<<63, got %d", got)
	}
}

func TestShardCount(t *testing.T) {
	t.Parallel()

	if got := ShardCount(1); got != 1 {
		t.Fatalf("ShardCount(1) = %d", got)
	}
	if got := ShardCount(3); got != 4 {
		t.Fatalf("ShardCount(3) = %d", got)
	}
	if got := ShardCount(10_000); got != MaxShards {
		t.Fatalf("ShardCount must clamp to %d, got %d", MaxShards, got)
	}
	if got := ShardCount(0); !IsPowerOfTwo(uint64(got)) {
		t.Fatalf("auto shard count must be a power of two, got %d", got)
	}
}

func TestShardIndex(t *testing.T) {
	t.Parallel()

	if got := ShardIndex(12345, 1); got != 0 {
		t.Fatalf("single shard must map to 0, got %d", got)
	}
	if got := ShardIndex(13, 8); got != 5 {
		t.Fatalf("mask path: got %d, want 5", got)
	}
	if got := ShardIndex(13, 6); got != 1 {
		t.Fatalf("modulo path: got %d, want 1", got)
	}
}

func TestHash64_Stable(t *testing.T) {
	t.Parallel()

	if Hash64("payload") != Hash64("payload") {
		t.Fatal("hash must be deterministic")
	}
	if Hash64("a") == Hash64("b") {
		t.Fatal("distinct short keys should not collide")
	}
	if Hash64(42) != Hash64(int64(42)) {
		t.Fatal("int and int64 of the same value must hash identically")
	}
}

func TestHash64_UnsupportedPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unsupported key type")
		}
	}()
	type opaque struct{ a, b int }
	Hash64(opaque{1, 2})
}
