// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StaleResultsDropped counts extraction results discarded by the generation check.
	StaleResultsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kodikplay_stale_results_dropped_total",
		Help: "Extraction results discarded because a newer selection superseded them",
	})

	// ProgressCheckpointsTotal counts progress writes by trigger.
	ProgressCheckpointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodikplay_progress_checkpoints_total",
		Help: "Progress checkpoints by reason (interval|pause|teardown|manual) and result",
	}, []string{"reason", "result"})

	// CommandDispatchTotal counts dispatched key chords.
	CommandDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodikplay_command_dispatch_total",
		Help: "Key chords dispatched to a handler",
	}, []string{"chord"})

	// SegmentTransitionsTotal counts skip-segment enter/exit edges.
	SegmentTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodikplay_segment_transitions_total",
		Help: "Skip segment transitions by kind and direction",
	}, []string{"kind", "direction"})
)

// IncStaleResultDropped records one discarded extraction result.
func IncStaleResultDropped() {
	StaleResultsDropped.Inc()
}

// RecordCheckpoint records one progress write.
func RecordCheckpoint(reason string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ProgressCheckpointsTotal.WithLabelValues(reason, result).Inc()
}

// IncCommandDispatch records a dispatched chord.
func IncCommandDispatch(chord string) {
	CommandDispatchTotal.WithLabelValues(chord).Inc()
}

// IncSegmentTransition records an enter or exit edge for a segment kind.
func IncSegmentTransition(kind, direction string) {
	if kind == "" {
		kind = "unknown"
	}
	SegmentTransitionsTotal.WithLabelValues(kind, direction).Inc()
}
