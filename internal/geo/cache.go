package geo

import (
	"sync"
	"sync/atomic"
	"time"
)

// indexCache is a concurrent-safe LRU cache of parsed boundary indexes keyed by
// source path, with TTL expiration so edited boundary files are picked up.
type indexCache struct {
	mu         sync.Mutex
	entries    map[string]*indexCacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type indexCacheEntry struct {
	index     *Index
	createdAt time.Time
}

// CacheStats contains boundary cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

func newIndexCache(maxEntries int, ttl time.Duration) *indexCache {
	return &indexCache{
		entries:    make(map[string]*indexCacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// get retrieves a cached index. Returns nil on miss or expiration.
func (c *indexCache) get(path string) *Index {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		c.misses.Add(1)
		return nil
	}

	if time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, path)
		c.removeFromOrder(path)
		c.misses.Add(1)
		return nil
	}

	// Move to back (most recently used).
	c.removeFromOrder(path)
	c.order = append(c.order, path)
	c.hits.Add(1)
	return entry.index
}

// put stores an index, evicting the oldest entry if at capacity.
func (c *indexCache) put(path string, idx *Index) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[path]; ok {
		c.entries[path] = &indexCacheEntry{index: idx, createdAt: time.Now()}
		c.removeFromOrder(path)
		c.order = append(c.order, path)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[path] = &indexCacheEntry{index: idx, createdAt: time.Now()}
	c.order = append(c.order, path)
}

// clear drops every cached index.
func (c *indexCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*indexCacheEntry)
	c.order = nil
}

// stats returns cache performance statistics.
func (c *indexCache) stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *indexCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
