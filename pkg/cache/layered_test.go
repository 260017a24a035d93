package cache

import (
	"context"
	"errors"
	"testing"
)

type countingBackend struct {
	*MemoryCache
	gets int
}

func (c *countingBackend) Get(ctx context.Context, key string, dest interface{}) error {
	c.gets++
	return c.MemoryCache.Get(ctx, key, dest)
}

func TestLayeredCacheReadsThroughOnce(t *testing.T) {
	backend := &countingBackend{MemoryCache: NewMemoryCache(WithMemoryCleanup(0))}
	ctx := context.Background()
	_ = backend.MemoryCache.Set(ctx, "k", payload{Name: "MSFT", Qty: 1}, 0)

	lc := NewLayeredCache(backend)
	defer lc.Close()

	for i := 0; i < 3; i++ {
		var got payload
		if err := lc.Get(ctx, "k", &got); err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Name != "MSFT" {
			t.Fatalf("unexpected value %+v", got)
		}
	}
	if backend.gets != 1 {
		t.Fatalf("expected one backend read, got %d", backend.gets)
	}
}

func TestLayeredCacheDeleteClearsBothLayers(t *testing.T) {
	backend := NewMemoryCache(WithMemoryCleanup(0))
	lc := NewLayeredCache(backend)
	defer lc.Close()
	ctx := context.Background()

	_ = lc.Set(ctx, "k", "v", 0)
	_ = lc.Delete(ctx, "k")

	var s string
	if err := lc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
	if ok, _ := backend.Exists(ctx, "k"); ok {
		t.Fatalf("backend still holds key")
	}
}

func TestLayeredCacheMemorySizeBoundsTier(t *testing.T) {
	backend := &countingBackend{MemoryCache: NewMemoryCache(WithMemoryCleanup(0))}
	ctx := context.Background()
	_ = backend.MemoryCache.Set(ctx, "a", "1", 0)
	_ = backend.MemoryCache.Set(ctx, "b", "2", 0)

	lc := NewLayeredCache(backend, WithLayeredMemorySize(1))
	defer lc.Close()

	var s string
	for _, k := range []string{"a", "b", "a"} {
		if err := lc.Get(ctx, k, &s); err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
	}
	// the one-entry tier dropped "a" when "b" came in
	if backend.gets != 3 {
		t.Fatalf("expected three backend reads, got %d", backend.gets)
	}
}
