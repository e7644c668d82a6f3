// Package cache provides a bounded, generic key/value cache with per-entry
// expiration and least-recently-used trimming.
// Independent instances are used per data domain (search results, recipe
// details, featured lists); instances never share keys or eviction.
package cache

import (
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the entry ceiling used when Config.Capacity is unset.
	DefaultCapacity = 100

	// DefaultTTL is the expiry applied when Set is called with a non-positive TTL.
	DefaultTTL = 15 * time.Minute

	// trimPercent is the share of live entries dropped by an LRU trim.
	trimPercent = 30
)

// Config holds cache construction options.
type Config struct {
	// Name labels the cache domain in logs and metrics (e.g. "search").
	Name string

	// Capacity is the maximum number of entries (default: 100).
	Capacity int

	// DefaultTTL applies when Set receives a non-positive TTL (default: 15m).
	DefaultTTL time.Duration

	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// Stats is a point-in-time view of a cache's counters.
type Stats struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
}

type entry[V any] struct {
	value        V
	expiresAt    time.Time
	lastAccessed time.Time
	createdAt    time.Time
	// seq orders entries whose lastAccessed timestamps collide.
	seq uint64
}

// TTLCache is a bounded cache keyed by string. It is safe for concurrent use.
// No method returns an error: a missing or expired key is an ordinary miss.
type TTLCache[V any] struct {
	mu         sync.Mutex
	name       string
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time
	entries    map[string]*entry[V]
	seq        uint64

	hits      int64
	misses    int64
	evictions int64
}

// New creates an empty cache.
func New[V any](cfg Config) *TTLCache[V] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	return &TTLCache[V]{
		name:       cfg.Name,
		capacity:   cfg.Capacity,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Clock,
		entries:    make(map[string]*entry[V], cfg.Capacity),
	}
}

// Name returns the cache's domain label.
func (c *TTLCache[V]) Name() string {
	return c.name
}

// Get returns the value for key. Expired entries are removed and reported as
// a miss. A hit refreshes the entry's last-access time.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.recordMiss()
		return zero, false
	}

	now := c.now()
	if now.After(e.expiresAt) {
		delete(c.entries, key)
		c.recordEvictions(evictExpired, 1)
		c.recordMiss()
		return zero, false
	}

	c.seq++
	e.lastAccessed = now
	e.seq = c.seq
	c.recordHit()
	return e.value, true
}

// Has reports whether key is present and unexpired. It counts as a read.
func (c *TTLCache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set inserts or overwrites key. When inserting a new key into a full cache,
// expired entries are purged first and, if that is not enough, the least
// recently accessed 30% of the remaining entries are dropped.
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.cleanup(now)
	}

	c.seq++
	c.entries[key] = &entry[V]{
		value:        value,
		expiresAt:    now.Add(ttl),
		lastAccessed: now,
		createdAt:    now,
		seq:          c.seq,
	}
}

// InvalidatePattern deletes every key matching pattern and returns how many
// were removed.
func (c *TTLCache[V]) InvalidatePattern(pattern *regexp.Regexp) int {
	if pattern == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if pattern.MatchString(key) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.recordEvictions(evictInvalidated, removed)
	}
	return removed
}

// Delete removes a single key.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V], c.capacity)
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the cache counters.
func (c *TTLCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Name:      c.name,
		Size:      len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// cleanup must be called with c.mu held.
func (c *TTLCache[V]) cleanup(now time.Time) {
	expired := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			expired++
		}
	}
	if expired > 0 {
		c.recordEvictions(evictExpired, expired)
	}
	if len(c.entries) < c.capacity {
		return
	}

	type candidate struct {
		key          string
		lastAccessed time.Time
		seq          uint64
	}
	candidates := make([]candidate, 0, len(c.entries))
	for key, e := range c.entries {
		candidates = append(candidates, candidate{key: key, lastAccessed: e.lastAccessed, seq: e.seq})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].lastAccessed.Equal(candidates[j].lastAccessed) {
			return candidates[i].seq < candidates[j].seq
		}
		return candidates[i].lastAccessed.Before(candidates[j].lastAccessed)
	})

	n := len(candidates) * trimPercent / 100
	if n < 1 {
		n = 1
	}
	for _, cand := range candidates[:n] {
		delete(c.entries, cand.key)
	}
	c.recordEvictions(evictLRU, n)

	slog.Debug("cache trimmed", "cache", c.name, "expired", expired, "lru", n, "remaining", len(c.entries))
}
