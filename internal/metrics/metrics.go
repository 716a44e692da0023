// Package metrics exposes Prometheus instrumentation for upstream calls and
// sync runs. The transport diagnostics buffer stays the operator-facing view;
// these series feed dashboards and alerts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream transport
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presto_upstream_requests_total",
			Help: "Logical upstream requests by endpoint label and outcome",
		},
		[]string{"label", "outcome"}, // outcome: success, failed, rejected
	)

	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presto_upstream_retries_total",
			Help: "Retry attempts issued after a 403/429 or network failure",
		},
		[]string{"label"},
	)

	UpstreamBotChallenges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presto_upstream_bot_challenges_total",
			Help: "403 responses whose body matched a bot-challenge fingerprint",
		},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "presto_upstream_request_duration_seconds",
			Help:    "Wall time of logical upstream requests including retries and throttling",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"label"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presto_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Sync runs
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Synchronizer runs by entity and final status",
		},
		[]string{"entity", "status"},
	)

	SyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_items_total",
			Help: "Items processed by synchronizers by entity and outcome",
		},
		[]string{"entity", "outcome"}, // created, updated, failed
	)
)
