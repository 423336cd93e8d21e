package tenants

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/upb/andon-board/models"
)

type cacheEntry struct {
	tenant     *models.Tenant
	insertedAt time.Time
	element    *list.Element
}

// SlugCache is an in-memory LRU cache with TTL from slug to tenant.
// Only found tenants are stored, so a newly registered slug resolves at once.
type SlugCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lru     *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
	now     func() time.Time
}

// NewSlugCache creates a cache holding at most maxSize tenants for ttl each
func NewSlugCache(maxSize int, ttl time.Duration) *SlugCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &SlugCache{
		entries: make(map[string]*cacheEntry),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached tenant for slug, or nil on a miss or expiry
func (c *SlugCache) Get(slug string) *models.Tenant {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[slug]
	if !ok || c.expired(entry) {
		c.misses++
		if ok {
			c.remove(slug)
		}
		return nil
	}

	c.lru.MoveToFront(entry.element)
	c.hits++
	return entry.tenant
}

// Set stores tenant under its slug, evicting the least recently used entry
// when full
func (c *SlugCache) Set(tenant *models.Tenant) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[tenant.Slug]; ok {
		entry.tenant = tenant
		entry.insertedAt = c.now()
		c.lru.MoveToFront(entry.element)
		return
	}

	if c.lru.Len() >= c.maxSize {
		if back := c.lru.Back(); back != nil {
			c.remove(back.Value.(string))
		}
	}

	c.entries[tenant.Slug] = &cacheEntry{
		tenant:     tenant,
		insertedAt: c.now(),
		element:    c.lru.PushFront(tenant.Slug),
	}
}

// CleanupExpired drops every expired entry and returns how many were removed
func (c *SlugCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for slug, entry := range c.entries {
		if c.expired(entry) {
			c.remove(slug)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker runs CleanupExpired every interval until ctx is done
func (c *SlugCache) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-ctx.Done():
			return
		}
	}
}

// CacheStats reports cache usage
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns a snapshot of cache usage
func (c *SlugCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    c.lru.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *SlugCache) expired(entry *cacheEntry) bool {
	return c.now().Sub(entry.insertedAt) > c.ttl
}

// remove must be called with mu held
func (c *SlugCache) remove(slug string) {
	if entry, ok := c.entries[slug]; ok {
		c.lru.Remove(entry.element)
		delete(c.entries, slug)
	}
}
