package storage

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"propscout/models"
	"propscout/utils"
)

type cacheEntry struct {
	payload    []byte
	insertedAt time.Time
}

// MemoryCache is an in-process TTL cache. Expiry is checked lazily on every
// read; a background sweep only reclaims memory.
type MemoryCache struct {
	ttl    time.Duration
	logger *utils.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry

	hits   atomic.Int64
	misses atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a MemoryCache. A sweep interval <= 0 disables the
// background sweep.
func NewMemoryCache(ttl, sweepInterval time.Duration, logger *utils.Logger) *MemoryCache {
	c := &MemoryCache{
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
		stop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}
	return c
}

func (c *MemoryCache) expired(e cacheEntry, now time.Time) bool {
	return now.Sub(e.insertedAt) >= c.ttl
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.expired(e, c.now()) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, still := c.entries[key]; still && c.expired(cur, c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		ok = false
	}

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.payload, true
}

func (c *MemoryCache) Set(key string, payload []byte) bool {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	c.mu.Lock()
	c.entries[key] = cacheEntry{payload: buf, insertedAt: c.now()}
	c.mu.Unlock()
	return true
}

// Keys returns the live keys in sorted order.
func (c *MemoryCache) Keys() []string {
	now := c.now()
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if !c.expired(e, now) {
			keys = append(keys, k)
		}
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (c *MemoryCache) FlushAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}

func (c *MemoryCache) Stats() models.CacheStats {
	return models.CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Keys:   len(c.Keys()),
	}
}

// Close stops the background sweep.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.sweep(); n > 0 && c.logger != nil {
				c.logger.Debug("[cache] Swept %d expired entries", n)
			}
		}
	}
}

func (c *MemoryCache) sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}
