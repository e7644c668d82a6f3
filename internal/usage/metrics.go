package usage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipegate_upstream_calls_total",
			Help: "Upstream recipe API calls recorded by the usage ledger",
		},
		[]string{"endpoint", "result"},
	)

	callsToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipegate_upstream_calls_today",
			Help: "Successful upstream calls counted for the current day",
		},
	)

	cacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipegate_usage_cache_hits_total",
			Help: "Requests answered from cache without an upstream call",
		},
	)

	ledgerReadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipegate_usage_ledger_read_failures_total",
			Help: "Failed attempts to read the usage ledger",
		},
	)

	ledgerWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipegate_usage_ledger_write_failures_total",
			Help: "Failed attempts to persist the usage ledger",
		},
	)
)
