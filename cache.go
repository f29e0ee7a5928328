package crucible

import (
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheEntry is one SSR Cache entry.
// Consumers receive copies, never the stored value.
type CacheEntry struct {
	HTML          string
	CSS           string
	Head          string
	ContentHash   string
	InsertionTime time.Time
	HitCount      int
}

// CacheStats is the hit/miss/size summary reported by Stats.
type CacheStats struct {
	Size     int
	MaxSize  int
	Hits     int64
	Misses   int64
	HitRate  float64
	OldestTS time.Time
	NewestTS time.Time
}

// Cache is a keyed LRU cache with per-entry TTL. Eviction ordering is
// delegated to hashicorp/golang-lru/v2; the TTL layer, hit/miss
// accounting and pattern invalidation are added on top since lru/v2
// itself has no notion of entry lifetime.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, *CacheEntry]
	cfg CacheConfig

	hits, misses int64
	now          func() time.Time
}

// NewCache builds a Cache from cfg.
func NewCache(cfg CacheConfig) *Cache {
	size := cfg.MaxSize
	if size <= 0 {
		size = 1
	}
	l, _ := lru.New[string, *CacheEntry](size)
	return &Cache{lru: l, cfg: cfg, now: time.Now}
}

func (c *Cache) expired(e *CacheEntry) bool {
	if c.cfg.TTL <= 0 {
		return false
	}
	return c.now().Sub(e.InsertionTime) > c.cfg.TTL
}

// Get looks up key: absent or expired counts as a
// miss (an expired entry is dropped), a hit bumps the entry's own hit
// count and moves it to most-recently-used.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return CacheEntry{}, false
	}
	if c.expired(entry) {
		c.lru.Remove(key)
		c.misses++
		return CacheEntry{}, false
	}
	c.hits++
	entry.HitCount++
	return *entry, true
}

// Has observes TTL but does not reorder recency.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lru.Peek(key)
	if !ok {
		return false
	}
	if c.expired(entry) {
		c.lru.Remove(key)
		return false
	}
	return true
}

// Set inserts entry as most-recently-used, evicting least-recent entries
// when the cache is at capacity (handled internally by lru.Cache.Add).
func (c *Cache) Set(key string, entry CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry.InsertionTime.IsZero() {
		entry.InsertionTime = c.now()
	}
	stored := entry
	c.lru.Add(key, &stored)
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// InvalidatePattern deletes all keys matching the pattern. A
// string pattern is compiled as a regex source; a compile failure returns
// ErrInvalidPattern.
func (c *Cache) InvalidatePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return &ErrInvalidPattern{Pattern: pattern, Cause: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		if re.MatchString(key) {
			c.lru.Remove(key)
		}
	}
	return nil
}

// InvalidateComponent deletes all keys whose prefix is "path:". The prefix
// is matched literally with strings.HasPrefix, so a path cannot be
// confused with regex metacharacters.
func (c *Cache) InvalidateComponent(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := path + ":"
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

// Clear empties the cache and resets hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.hits, c.misses = 0, 0
}

// Stats reports the cache's current counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    c.lru.Len(),
		MaxSize: c.cfg.MaxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	keys := c.lru.Keys()
	for i, key := range keys {
		entry, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if i == 0 || entry.InsertionTime.Before(stats.OldestTS) {
			stats.OldestTS = entry.InsertionTime
		}
		if entry.InsertionTime.After(stats.NewestTS) {
			stats.NewestTS = entry.InsertionTime
		}
	}
	return stats
}

// GenerateKey is a thin convenience so callers holding only a Cache (and
// not the Renderer/Orchestrator) can still build well-formed keys.
func (c *Cache) GenerateKey(componentPath string, props map[string]any, code string) string {
	if !c.cfg.UseContentHash {
		code = ""
	}
	return GenerateKey(componentPath, props, code)
}
