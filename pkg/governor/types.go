// Package governor implements C11, the concurrency governor: four gates
// wrapped around every orchestrator execution (spec.md §4.11) —
// idempotency lock, cooldown, max attempts, and per-repo concurrency
// slots — backed by Redis so the gates are shared across process
// instances, the way the teacher's distributed coordinator patterns work.
package governor

import "time"

// Verdict is Admit's outcome.
type Verdict string

const (
	// VerdictAllow means the caller may proceed to run the orchestrator.
	VerdictAllow Verdict = "allow"
	// VerdictAlreadyRunning means a concurrent attempt holds the run_key
	// lock; the caller should return without advancing state.
	VerdictAlreadyRunning Verdict = "already_running"
	// VerdictRetryable means a transient condition (cooldown or no free
	// repo slot) blocked this attempt; Countdown/Backoff says how long to
	// wait before the next one.
	VerdictRetryable Verdict = "retryable"
	// VerdictBlocked means attempt_count has reached max_pipeline_attempts;
	// terminal, not retried.
	VerdictBlocked Verdict = "blocked"
)

// AdmitRequest carries what the governor needs to evaluate all four
// gates for one run.
type AdmitRequest struct {
	RunKey       string
	Repo         string
	AttemptCount int
	LastUpdated  time.Time
}

// AdmitResult is Admit's decision plus the data needed to act on it.
type AdmitResult struct {
	Verdict       Verdict
	BlockedReason string        // set when Verdict == VerdictBlocked
	Countdown     time.Duration // set when Verdict == VerdictRetryable
	FailedOpen    bool          // true when a Redis outage forced VerdictAllow
}
