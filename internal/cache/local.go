package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultLocalMaxEntries bounds the in-memory cache when no limit is configured.
const DefaultLocalMaxEntries = 512

// LocalConfig holds in-memory cache configuration.
type LocalConfig struct {
	// TTL is how long an entry stays valid. Zero means entries never expire.
	TTL time.Duration
	// MaxEntries bounds the number of stored entries (defaults to 512).
	MaxEntries int
}

type localEntry struct {
	text    string
	expires time.Time
}

// LocalCache implements Cache in process memory.
// This is suitable for single-instance deployments.
type LocalCache struct {
	mu         sync.RWMutex
	entries    map[string]localEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewLocalCache creates a new in-memory cache.
func NewLocalCache(cfg LocalConfig) *LocalCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultLocalMaxEntries
	}
	return &LocalCache{
		entries:    make(map[string]localEntry),
		ttl:        cfg.TTL,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get retrieves the text stored under key.
func (c *LocalCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false, nil
	}
	return e.text, true, nil
}

// Set stores text under key, evicting expired entries (and then arbitrary
// ones) when the cache is full.
func (c *LocalCache) Set(_ context.Context, key, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	e := localEntry{text: text}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *LocalCache) evictLocked() {
	now := c.now()
	for k, e := range c.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	for k := range c.entries {
		if len(c.entries) < c.maxEntries {
			return
		}
		delete(c.entries, k)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *LocalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close is a no-op for local cache.
func (c *LocalCache) Close() error {
	return nil
}
