// Package metrics holds the Prometheus collectors for the verification pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceAttempts counts adapter calls by source and outcome
	SourceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citeverify_source_attempts_total",
		Help: "Source adapter calls by source and outcome",
	}, []string{"source", "outcome"})

	// SourceLatency tracks adapter call latency
	SourceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "citeverify_source_latency_seconds",
		Help:    "Source adapter call latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms to ~13s
	}, []string{"source"})

	// Verifications counts finished citation verifications by status
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citeverify_verifications_total",
		Help: "Citation verifications by final status",
	}, []string{"status"})

	// CacheLookups counts cache lookups by namespace and result
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citeverify_cache_lookups_total",
		Help: "Cache lookups by namespace and result",
	}, []string{"namespace", "result"})

	// BreakerTrips counts per-batch circuit breaker openings
	BreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citeverify_breaker_trips_total",
		Help: "Per-batch circuit breaker openings by source",
	}, []string{"source"})

	// LinkChecks counts URL liveness checks by resulting state
	LinkChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citeverify_link_checks_total",
		Help: "URL liveness checks by state",
	}, []string{"state"})
)

// Outcome labels for SourceAttempts
const (
	OutcomeFound       = "found"
	OutcomeNotFound    = "not_found"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
	OutcomeSkipped     = "skipped"
	OutcomeTimeout     = "timeout"
)
