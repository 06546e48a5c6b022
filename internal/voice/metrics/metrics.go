// Package metrics exposes Prometheus instrumentation for the voice pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicegate_verification_decisions_total",
		Help: "Verification decisions by tier and outcome",
	}, []string{"tier", "result"})

	matchScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicegate_match_score",
		Help:    "Distribution of verification match scores",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	providerLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicegate_provider_latency_seconds",
		Help:    "Latency of external provider verification calls",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	})

	providerFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicegate_provider_failures_total",
		Help: "External provider failures by error category",
	}, []string{"category"})

	placeholderDecisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicegate_placeholder_decisions_total",
		Help: "Decisions produced by the placeholder tier; non-zero in production is a misconfiguration signal",
	})

	sessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicegate_enrollment_sessions_started_total",
		Help: "Enrollment sessions created",
	})

	sessionsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicegate_enrollment_sessions_completed_total",
		Help: "Enrollment sessions that reached the required sample count",
	})

	samplesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicegate_enrollment_samples_recorded_total",
		Help: "Enrollment samples accepted",
	})
)

// ObserveDecision records a verification decision outcome.
func ObserveDecision(tier string, isMatch bool, score float64) {
	result := "no_match"
	if isMatch {
		result = "match"
	}
	decisionsTotal.WithLabelValues(tier, result).Inc()
	matchScore.Observe(score)
	if tier == "placeholder" {
		placeholderDecisionsTotal.Inc()
	}
}

// ObserveProviderCall records the latency of an external provider call.
func ObserveProviderCall(elapsed time.Duration) {
	providerLatencySeconds.Observe(elapsed.Seconds())
}

// ObserveProviderFailure records a categorized provider failure.
func ObserveProviderFailure(category string) {
	providerFailuresTotal.WithLabelValues(category).Inc()
}

// ObserveSessionStarted records a new enrollment session.
func ObserveSessionStarted() { sessionsStartedTotal.Inc() }

// ObserveSessionCompleted records a completed enrollment.
func ObserveSessionCompleted() { sessionsCompletedTotal.Inc() }

// ObserveSampleRecorded records an accepted sample.
func ObserveSampleRecorded() { samplesRecordedTotal.Inc() }
