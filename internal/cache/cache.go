// Package cache provides the process-wide response cache used to avoid
// repeating identical retrieval calls within a short window. Entries are
// visible only while younger than their TTL; expired entries are treated as
// absent on read and physically removed by a periodic janitor sweep. There is
// no capacity bound, so steady-state memory tracks the live key set within
// one TTL window.
package cache

import (
	"sync"
	"time"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	value      string
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// Cache is a TTL key-value cache safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration

	stop chan struct{}
	once sync.Once
}

// New creates a cache with the given default TTL and starts a janitor that
// sweeps expired entries once per TTL period. Pass 0 to use DefaultTTL.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the value for key, or ("", false) if absent or expired.
func (c *Cache) Get(key string) (string, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false
	}
	if e.expired(now) {
		// Lazy eviction; the janitor handles the rest.
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expired(time.Now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false
	}
	return e.value, true
}

// Set stores value under key with the given TTL. Pass 0 for the default.
func (c *Cache) Set(key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, insertedAt: time.Now(), ttl: ttl}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the janitor goroutine. The cache remains usable afterwards.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(c.defaultTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
