package offline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	outcomeHit         = "hit"
	outcomeNetwork     = "network"
	outcomeFallback    = "fallback"
	outcomePlaceholder = "placeholder"
	outcomeOffline     = "offline"
	outcomeStale       = "stale"
	outcomeError       = "error"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "recipegate_offline_requests_total",
		Help: "Requests handled by the offline asset cache",
	},
	[]string{"class", "outcome"},
)

func record(class Class, outcome string) {
	requestsTotal.WithLabelValues(string(class), outcome).Inc()
}
