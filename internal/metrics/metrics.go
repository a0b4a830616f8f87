// Package metrics provides Prometheus metrics for ingestion runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts settled runs.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newstack",
			Name:      "runs_total",
			Help:      "Total number of settled ingestion runs",
		},
		[]string{"trigger", "outcome"},
	)

	// RunDuration measures run duration from start to settlement.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newstack",
			Name:      "run_duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	// RunsRefused counts triggers that were turned away.
	RunsRefused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newstack",
			Name:      "runs_refused_total",
			Help:      "Total number of refused run triggers",
		},
		[]string{"reason"},
	)

	// StoriesIngested counts stories reported by the remote function.
	StoriesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newstack",
			Name:      "stories_ingested_total",
			Help:      "Stories created or merged by ingestion runs",
		},
		[]string{"kind"},
	)
)

// RecordRun records a settled run.
func RecordRun(trigger, outcome string, seconds float64) {
	RunsTotal.WithLabelValues(trigger, outcome).Inc()
	RunDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordRefused records a refused trigger.
func RecordRefused(reason string) {
	RunsRefused.WithLabelValues(reason).Inc()
}

// RecordStories adds remote counters.
func RecordStories(created, merged int) {
	StoriesIngested.WithLabelValues("created").Add(float64(created))
	StoriesIngested.WithLabelValues("merged").Add(float64(merged))
}
