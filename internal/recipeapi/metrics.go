package recipeapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipegate_upstream_request_duration_seconds",
			Help:    "Latency of upstream recipe API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	quotaLeftGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipegate_upstream_quota_left",
			Help: "Remaining upstream points reported by the last response",
		},
	)
)

func observeRequest(endpoint, status string, start time.Time) {
	requestDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
}
