// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractRunsTotal counts resolve runs by outcome (ok|empty|routing) and terminal stage.
	ExtractRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodikplay_extract_runs_total",
		Help: "Total number of source extraction runs by outcome and terminal stage",
	}, []string{"outcome", "stage"})

	// ExtractDuration tracks wall time of a whole resolve run.
	ExtractDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kodikplay_extract_duration_seconds",
		Help:    "Duration of source extraction runs",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13},
	}, []string{"outcome"})

	// EndpointRefreshTotal counts companion-script endpoint refreshes.
	EndpointRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodikplay_endpoint_refresh_total",
		Help: "Companion script endpoint refreshes by result (updated|unchanged|fetch_failed)",
	}, []string{"result"})

	// SourcesResolved tracks how many quality tiers a successful run produced.
	SourcesResolved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kodikplay_sources_resolved",
		Help:    "Number of media sources produced by successful extraction runs",
		Buckets: []float64{1, 2, 3},
	})
)

// RecordExtractRun records the outcome of one resolve run.
func RecordExtractRun(outcome, stage string, d time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if stage == "" {
		stage = "unknown"
	}
	ExtractRunsTotal.WithLabelValues(outcome, stage).Inc()
	ExtractDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordEndpointRefresh records one companion-script refresh attempt.
func RecordEndpointRefresh(result string) {
	EndpointRefreshTotal.WithLabelValues(result).Inc()
}

// ObserveSourcesResolved records the number of sources of a successful run.
func ObserveSourcesResolved(n int) {
	SourcesResolved.Observe(float64(n))
}

var (
	// BreakerState reports the upstream circuit breaker state per host (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kodikplay_upstream_breaker_state",
		Help: "Upstream circuit breaker state per host (0=closed, 1=half-open, 2=open)",
	}, []string{"host"})

	// BreakerTripsTotal counts transitions into the open state.
	BreakerTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodikplay_upstream_breaker_trips_total",
		Help: "Upstream circuit breaker trips by host and reason",
	}, []string{"host", "reason"})
)

// SetBreakerState publishes the numeric state of a host breaker.
func SetBreakerState(host string, state float64) {
	BreakerState.WithLabelValues(host).Set(state)
}

// RecordBreakerTrip records a breaker opening.
func RecordBreakerTrip(host, reason string) {
	BreakerTripsTotal.WithLabelValues(host, reason).Inc()
}
