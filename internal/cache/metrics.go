package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Eviction reasons used as metric labels.
const (
	evictExpired     = "expired"
	evictLRU         = "lru"
	evictInvalidated = "invalidated"
)

var (
	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipegate_cache_requests_total",
			Help: "Cache lookups by domain and result (hit or miss)",
		},
		[]string{"cache", "result"},
	)

	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipegate_cache_evictions_total",
			Help: "Entries removed from a cache by domain and reason",
		},
		[]string{"cache", "reason"},
	)
)

// The helpers below must be called with c.mu held.

func (c *TTLCache[V]) recordHit() {
	c.hits++
	cacheRequests.WithLabelValues(c.name, "hit").Inc()
}

func (c *TTLCache[V]) recordMiss() {
	c.misses++
	cacheRequests.WithLabelValues(c.name, "miss").Inc()
}

func (c *TTLCache[V]) recordEvictions(reason string, n int) {
	c.evictions += int64(n)
	cacheEvictions.WithLabelValues(c.name, reason).Add(float64(n))
}
