// Package metrics exposes Prometheus instrumentation for the mirror
// gateway, grounded on
// buildbarn/bb-storage/pkg/blobstore/metrics_blob_access.go's
// counter/histogram pattern. Unlike that file's per-operation bound
// fields, mirror name and resource kind here are runtime
// configuration rather than a fixed compile-time set of operations, so
// label values are looked up per call instead of pre-bound at
// construction.
package metrics

import (
	"math"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beatmap_mirror_gateway",
			Subsystem: "orchestrator",
			Name:      "mirror_attempts_total",
			Help:      "Total number of mirror fetch attempts, by mirror, resource and outcome.",
		},
		[]string{"mirror_name", "resource", "outcome"})

	attemptDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "beatmap_mirror_gateway",
			Subsystem: "orchestrator",
			Name:      "mirror_attempt_duration_seconds",
			Help:      "Latency of a single mirror fetch attempt, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, math.Pow(10.0, 1.0/3.0), 6*3+1),
		},
		[]string{"mirror_name", "resource"})

	currentWeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "beatmap_mirror_gateway",
			Subsystem: "selector",
			Name:      "mirror_weight",
			Help:      "Most recently computed DWRR weight for a mirror and resource.",
		},
		[]string{"mirror_name", "resource"})
)

func init() {
	prometheus.MustRegister(attemptsTotal)
	prometheus.MustRegister(attemptDurationSeconds)
	prometheus.MustRegister(currentWeight)
}

// Outcome is the label used to distinguish how an attempt concluded.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeAbsent           Outcome = "absent"
	OutcomeFailure          Outcome = "failure"
	OutcomeValidationFailed Outcome = "validation_failed"
)

// RecordAttempt folds one completed mirror attempt into the counters
// and latency histogram.
func RecordAttempt(mirrorName string, resource mirror.Resource, outcome Outcome, latency time.Duration) {
	attemptsTotal.WithLabelValues(mirrorName, string(resource), string(outcome)).Inc()
	attemptDurationSeconds.WithLabelValues(mirrorName, string(resource)).Observe(latency.Seconds())
}

// SetWeight publishes a mirror's latest DWRR weight as a gauge.
func SetWeight(mirrorName string, resource mirror.Resource, weight int) {
	currentWeight.WithLabelValues(mirrorName, string(resource)).Set(float64(weight))
}
