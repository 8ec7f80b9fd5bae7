// Package pipelineerrors classifies fix-pipeline failures into the four
// taxonomies the orchestrator's state machine dispatches on: validation,
// policy block, transient, and fatal. Each keeps a cause built by
// github.com/relayci/fixpipeline/pkg/shared/errors (an OperationError for a
// policy block, FailedTo's wrapped error for transient and fatal failures)
// so errors.Is/errors.As still walk through to any underlying error.
package pipelineerrors

import (
	"errors"
	"fmt"
	"time"

	sharederrors "github.com/relayci/fixpipeline/pkg/shared/errors"
)

// ValidationError reports a malformed webhook payload, diff, or adapter
// category. Surfaced to the caller with a 4xx; never persisted as run state.
type ValidationError struct {
	Field string
	Cause error
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Cause: sharederrors.ValidationError(field, reason)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (field: %s): %s", e.Field, e.Cause.Error())
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// PolicyViolation is one entry of the policy engine's violations list.
type PolicyViolation struct {
	Code     string
	Severity string // WARN | BLOCK
	Message  string
}

// PolicyBlockError reports a BLOCK-severity policy violation or guardrail
// failure. Persisted as a terminal *_blocked run state with the full
// violations list; never retried.
type PolicyBlockError struct {
	Violations []PolicyViolation
	Cause      error
}

func NewPolicyBlockError(violations []PolicyViolation) *PolicyBlockError {
	blocking := make([]string, 0, len(violations))
	for _, v := range violations {
		if v.Severity == "BLOCK" {
			blocking = append(blocking, v.Code)
		}
	}
	cause := sharederrors.FailedToWithDetails("evaluate policy", "policy", "", fmt.Errorf("blocked by: %v", blocking))
	return &PolicyBlockError{Violations: violations, Cause: cause}
}

func (e *PolicyBlockError) Error() string {
	return fmt.Sprintf("policy block: %s", e.Cause.Error())
}

func (e *PolicyBlockError) Unwrap() error { return e.Cause }

// TransientError reports a retryable failure: network timeouts, 5xx from
// external services, database or lock contention, repo slot unavailable.
// The governor schedules another attempt using Backoff, up to
// max_pipeline_attempts.
type TransientError struct {
	Attempt int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Cause     error
}

func NewTransientError(operation string, attempt int, baseDelay, maxDelay time.Duration, cause error) *TransientError {
	return &TransientError{
		Attempt:   attempt,
		BaseDelay: baseDelay,
		MaxDelay:  maxDelay,
		Cause:     sharederrors.FailedTo(operation, cause),
	}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure (attempt %d): %s", e.Attempt, e.Cause.Error())
}

func (e *TransientError) Unwrap() error { return e.Cause }

// Retryable is always true for TransientError; it exists so callers can
// type-switch on a common interface (see IsRetryable below).
func (e *TransientError) Retryable() bool { return true }

// Backoff computes countdown = min(base * 2^(attempt-1), max), the formula
// the concrete scenario in the spec's retryable-transient-failure case uses.
func (e *TransientError) Backoff() time.Duration {
	if e.Attempt < 1 {
		return e.BaseDelay
	}
	shift := e.Attempt - 1
	if shift > 62 {
		return e.MaxDelay
	}
	delay := e.BaseDelay << uint(shift)
	if delay <= 0 || delay > e.MaxDelay {
		return e.MaxDelay
	}
	return delay
}

// FatalError reports an unparsable result, a contract violation (e.g. a
// patch touching files outside the plan), or a container runtime refusal.
// Persisted terminal *_failed, never retried.
type FatalError struct {
	Reason string
	Cause  error
}

func NewFatalError(reason string, cause error) *FatalError {
	return &FatalError{Reason: reason, Cause: sharederrors.FailedTo(reason, cause)}
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal failure: %s", e.Cause.Error())
}

func (e *FatalError) Unwrap() error { return e.Cause }

// retryable is implemented by TransientError and lets callers classify an
// arbitrary error without a type switch on the concrete type.
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err (or anything in its wrap chain) is a
// TransientError. Falls back to the generic substring heuristic in
// pkg/shared/errors for errors that never passed through this package.
func IsRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return sharederrors.IsRetryable(err)
}

// BackoffFor returns the computed backoff duration for err if it is a
// TransientError, and zero otherwise.
func BackoffFor(err error) time.Duration {
	var t *TransientError
	if errors.As(err, &t) {
		return t.Backoff()
	}
	return 0
}
