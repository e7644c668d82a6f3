package recipes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons a search was answered from the bundled dataset.
const (
	reasonNotConfigured = "not_configured"
	reasonQuotaGate     = "quota_gate"
	reasonQuotaExceeded = "quota_exceeded"
)

var (
	fallbackResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipegate_fallback_responses_total",
			Help: "Searches answered from the local dataset, by reason",
		},
		[]string{"reason"},
	)

	sharedFlights = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipegate_inflight_shared_total",
			Help: "Requests that reused an identical in-flight upstream call",
		},
		[]string{"operation"},
	)
)
