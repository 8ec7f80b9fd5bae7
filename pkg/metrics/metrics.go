// Package metrics exposes the process-wide Prometheus registry (§ ambient
// stack): counters for events ingested and deduped, runs broken out by
// terminal state, a danger-score histogram, and governor retry counts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsIngestedTotal counts normalized webhook events accepted at the
	// ingestion boundary, labeled by provider.
	EventsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixpipeline_events_ingested_total",
		Help: "Total normalized pipeline events accepted, by provider.",
	}, []string{"provider"})

	// EventsDedupedTotal counts webhook deliveries rejected as duplicates
	// of an idempotency_key already on file.
	EventsDedupedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixpipeline_events_deduped_total",
		Help: "Total webhook deliveries rejected as duplicates, by provider.",
	}, []string{"provider"})

	// RunsTotal counts orchestrator runs that reached a terminal status.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixpipeline_runs_total",
		Help: "Total fix pipeline runs, by terminal status.",
	}, []string{"status"})

	// RunDurationSeconds measures wall-clock time from run start to
	// terminal status, by terminal status.
	RunDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fixpipeline_run_duration_seconds",
		Help:    "Fix pipeline run duration from admission to terminal status.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34m
	}, []string{"status"})

	// PolicyDangerScore observes the danger score policy.EvaluatePatch
	// assigned to an evaluated patch.
	PolicyDangerScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fixpipeline_policy_danger_score",
		Help:    "Danger score assigned to evaluated patches.",
		Buckets: prometheus.LinearBuckets(0, 10, 11), // 0..100
	})

	// GovernorVerdictsTotal counts governor.Admit outcomes, by verdict.
	GovernorVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixpipeline_governor_verdicts_total",
		Help: "Total concurrency governor admission verdicts.",
	}, []string{"verdict"})

	// GovernorRetriesTotal counts VerdictRetryable outcomes specifically,
	// broken out by the gate label the caller passes (pkg/pipeline passes
	// cooldown_or_concurrency); a retryable verdict with an empty label is
	// not counted here.
	GovernorRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixpipeline_governor_retries_total",
		Help: "Total retryable governor verdicts, by gate.",
	}, []string{"gate"})

	// ConsensusDecisionsTotal counts consensus.Coordinator.Decide outcomes,
	// by resulting state.
	ConsensusDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixpipeline_consensus_decisions_total",
		Help: "Total consensus decisions, by state.",
	}, []string{"state"})

	// SandboxValidationDurationSeconds measures how long the ephemeral
	// sandbox spent validating a candidate patch.
	SandboxValidationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fixpipeline_sandbox_validation_duration_seconds",
		Help:    "Duration of sandbox clone+patch+test validation runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// RecordEventIngested increments EventsIngestedTotal for provider.
func RecordEventIngested(provider string) {
	EventsIngestedTotal.WithLabelValues(provider).Inc()
}

// RecordEventDeduped increments EventsDedupedTotal for provider.
func RecordEventDeduped(provider string) {
	EventsDedupedTotal.WithLabelValues(provider).Inc()
}

// RecordRun increments RunsTotal and observes RunDurationSeconds for a run
// that just reached a terminal status.
func RecordRun(status string, duration time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDangerScore observes a policy danger score.
func RecordDangerScore(score int) {
	PolicyDangerScore.Observe(float64(score))
}

// RecordGovernorVerdict increments GovernorVerdictsTotal, and additionally
// GovernorRetriesTotal when verdict is retryable.
func RecordGovernorVerdict(verdict, gate string) {
	GovernorVerdictsTotal.WithLabelValues(verdict).Inc()
	if verdict == "retryable" && gate != "" {
		GovernorRetriesTotal.WithLabelValues(gate).Inc()
	}
}

// RecordConsensusDecision increments ConsensusDecisionsTotal for state.
func RecordConsensusDecision(state string) {
	ConsensusDecisionsTotal.WithLabelValues(state).Inc()
}

// RecordSandboxValidation observes a sandbox validation duration.
func RecordSandboxValidation(duration time.Duration) {
	SandboxValidationDurationSeconds.Observe(duration.Seconds())
}
