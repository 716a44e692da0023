// Package cache provides an in-memory TTL cache for bearer tokens and other
// short-lived strings. Callers depend on the Cache interface so a shared
// cache can replace it in a multi-process deployment; nothing may rely on a
// hit for correctness.
package cache

import (
	"sync"
	"time"
)

const evictInterval = 5 * time.Minute

// Cache is a string cache with per-key TTL.
type Cache interface {
	// Get returns the value and its expiry, or ok=false on miss or expiry.
	Get(key string) (value string, expiresAt time.Time, ok bool)
	Set(key, value string, ttl time.Duration)
	Delete(key string)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is a thread-safe in-memory Cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	enabled bool
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

var _ Cache = (*Memory)(nil)

// New creates a Memory cache. Pass enabled=false for a no-op cache that
// never hits.
func New(enabled bool) *Memory {
	c := &Memory{
		entries: make(map[string]entry),
		enabled: enabled,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if enabled {
		go c.evictLoop()
	}
	return c
}

// Get retrieves a live entry.
func (c *Memory) Get(key string) (string, time.Time, bool) {
	if !c.enabled {
		return "", time.Time{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, exists := c.entries[key]
	if !exists || !c.now().Before(e.expiresAt) {
		return "", time.Time{}, false
	}
	return e.value, e.expiresAt, true
}

// Set stores a value for ttl. A non-positive ttl deletes the key.
func (c *Memory) Set(key, value string, ttl time.Duration) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl <= 0 {
		delete(c.entries, key)
		return
	}
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// Delete removes a key.
func (c *Memory) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Stats returns cache statistics.
func (c *Memory) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			active++
		}
	}
	return map[string]any{
		"enabled":      c.enabled,
		"total_keys":   len(c.entries),
		"active_keys":  active,
		"expired_keys": len(c.entries) - active,
	}
}

// Close stops the eviction loop.
func (c *Memory) Close() {
	c.once.Do(func() { close(c.stop) })
}

// evictLoop periodically removes expired entries.
func (c *Memory) evictLoop() {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evict()
		}
	}
}

func (c *Memory) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
