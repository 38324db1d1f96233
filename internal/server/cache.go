package server

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/zoomtier/internal/metrics"
)

// ResponseCache is a concurrent-safe LRU cache of encoded responses with TTL
// expiration. Keys are prefixed by layer name so a layer can be invalidated
// as a whole.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

type cacheEntry struct {
	data      []byte
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewResponseCache creates a cache holding at most maxEntries responses,
// each for at most ttl. A non-positive maxEntries disables caching.
func NewResponseCache(maxEntries int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// pointsKey builds the cache key for a points query.
func pointsKey(layer string, zoom int, bbox string) string {
	return fmt.Sprintf("%s/%d/%s", layer, zoom, bbox)
}

// Get returns a cached response, or nil on miss or expiration.
func (c *ResponseCache) Get(key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.miss()
		return nil
	}

	if c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.miss()
		return nil
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	metrics.CacheHitsTotal.Inc()
	return entry.data
}

func (c *ResponseCache) miss() {
	c.misses.Add(1)
	metrics.CacheMissesTotal.Inc()
}

// Put stores a response, evicting the least recently used entry at capacity.
func (c *ResponseCache) Put(key string, data []byte) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{data: data, createdAt: c.now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &cacheEntry{data: data, createdAt: c.now()}
	c.order = append(c.order, key)
}

// Invalidate drops every cached response of layer.
func (c *ResponseCache) Invalidate(layer string) {
	prefix := layer + "/"

	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.order[:0]
	for _, key := range c.order {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		} else {
			remaining = append(remaining, key)
		}
	}
	c.order = remaining
}

// Stats returns cache performance statistics.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *ResponseCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
