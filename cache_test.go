package crucible

import (
	"testing"
	"time"
)

func TestCacheGetSetRoundTrip(t *testing.T) {
	c := NewCache(defaultCacheConfig())
	c.Set("a", CacheEntry{HTML: "<p>hi</p>"})

	entry, ok := c.Get("a")
	if !ok {
		t.Fatalf("expected hit")
	}
	if entry.HTML != "<p>hi</p>" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	cfg := defaultCacheConfig()
	cfg.TTL = time.Minute
	c := NewCache(cfg)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("a", CacheEntry{HTML: "x"})

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected entry to have expired")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	cfg := defaultCacheConfig()
	cfg.MaxSize = 3
	cfg.TTL = 0
	c := NewCache(cfg)

	for _, k := range []string{"k1", "k2", "k3", "k4"} {
		c.Set(k, CacheEntry{HTML: k})
	}
	if _, ok := c.Get("k1"); ok {
		t.Fatalf("expected k1 to have been evicted")
	}
	if _, ok := c.Get("k4"); !ok {
		t.Fatalf("expected k4 to survive")
	}
}

func TestCacheGetCountsAsTouch(t *testing.T) {
	cfg := defaultCacheConfig()
	cfg.MaxSize = 3
	cfg.TTL = 0
	c := NewCache(cfg)

	c.Set("k1", CacheEntry{HTML: "1"})
	c.Set("k2", CacheEntry{HTML: "2"})
	c.Set("k3", CacheEntry{HTML: "3"})
	c.Get("k1")
	c.Set("k4", CacheEntry{HTML: "4"})

	if _, ok := c.Get("k1"); !ok {
		t.Fatalf("expected touched k1 to survive eviction")
	}
	if _, ok := c.Get("k2"); ok {
		t.Fatalf("expected k2 to have been evicted")
	}
}

func TestCacheHasObservesTTLWithoutReordering(t *testing.T) {
	cfg := defaultCacheConfig()
	cfg.TTL = time.Minute
	c := NewCache(cfg)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("a", CacheEntry{HTML: "x"})

	if !c.Has("a") {
		t.Fatalf("expected Has to see fresh entry")
	}
	now = now.Add(2 * time.Minute)
	if c.Has("a") {
		t.Fatalf("expected Has to observe expiry")
	}
}

func TestCacheInvalidateComponent(t *testing.T) {
	c := NewCache(defaultCacheConfig())
	key := c.GenerateKey("/pages/index.astro", nil, "")
	c.Set(key, CacheEntry{HTML: "x"})
	c.Set("unrelated:key", CacheEntry{HTML: "y"})

	c.InvalidateComponent("/pages/index.astro")

	if _, ok := c.Get(key); ok {
		t.Fatalf("expected component entry to be invalidated")
	}
	if _, ok := c.Get("unrelated:key"); !ok {
		t.Fatalf("expected unrelated entry to survive")
	}
}

func TestCacheInvalidatePatternInvalidRegex(t *testing.T) {
	c := NewCache(defaultCacheConfig())
	err := c.InvalidatePattern("(unterminated")
	if err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
}

func TestCacheInvalidatePatternMatches(t *testing.T) {
	c := NewCache(defaultCacheConfig())
	c.Set("/pages/a.astro:1", CacheEntry{HTML: "a"})
	c.Set("/pages/b.astro:1", CacheEntry{HTML: "b"})
	c.Set("/other/c.astro:1", CacheEntry{HTML: "c"})

	if err := c.InvalidatePattern("^/pages/"); err != nil {
		t.Fatalf("invalidate pattern: %v", err)
	}

	if _, ok := c.Get("/pages/a.astro:1"); ok {
		t.Fatalf("expected /pages/a entry to be gone")
	}
	if _, ok := c.Get("/other/c.astro:1"); !ok {
		t.Fatalf("expected /other/c entry to survive")
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache(defaultCacheConfig())
	c.Set("a", CacheEntry{HTML: "x"})
	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected cache to be empty after Clear")
	}
}
