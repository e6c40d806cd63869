package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JNZader/shapescan/internal/matcher"
)

// LRUCache implements an in-memory LRU cache.
type LRUCache struct {
	maxEntries int
	ttl        time.Duration

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type lruEntry struct {
	key       string
	reports   []matcher.RuleMatchReport
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache. A zero ttl keeps entries until
// they are evicted.
func NewLRUCache(maxEntries int, ttl time.Duration) *LRUCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &LRUCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *LRUCache) Get(key string) ([]matcher.RuleMatchReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[key]
	if !exists {
		c.misses.Add(1)
		return nil, false, nil
	}

	entry := elem.Value.(*lruEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.misses.Add(1)
		return nil, false, nil
	}

	c.order.MoveToFront(elem)
	c.hits.Add(1)
	return clone(entry.reports), true, nil
}

func (c *LRUCache) Set(key string, reports []matcher.RuleMatchReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.entries[key]; exists {
		entry := elem.Value.(*lruEntry)
		entry.reports = strip(reports)
		entry.expiresAt = c.expiry()
		c.order.MoveToFront(elem)
		return nil
	}

	if c.order.Len() >= c.maxEntries {
		c.evictOldest()
	}

	elem := c.order.PushFront(&lruEntry{
		key:       key,
		reports:   strip(reports),
		expiresAt: c.expiry(),
	})
	c.entries[key] = elem
	return nil
}

func (c *LRUCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.entries[key]; exists {
		c.order.Remove(elem)
		delete(c.entries, key)
	}
	return nil
}

func (c *LRUCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	return nil
}

func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.order.Len(),
	}
}

func (c *LRUCache) Close() error { return nil }

func (c *LRUCache) expiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.ttl)
}

func (c *LRUCache) evictOldest() {
	elem := c.order.Back()
	if elem != nil {
		entry := elem.Value.(*lruEntry)
		delete(c.entries, entry.key)
		c.order.Remove(elem)
	}
}
