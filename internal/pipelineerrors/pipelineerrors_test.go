package pipelineerrors

import (
	"errors"
	"testing"
	"time"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("payload.action", "unrecognized adapter category")
	if err.Field != "payload.action" {
		t.Errorf("Field = %v, want %v", err.Field, "payload.action")
	}
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}
}

func TestPolicyBlockError(t *testing.T) {
	violations := []PolicyViolation{
		{Code: "forbidden_path", Severity: "BLOCK", Message: "path matches policy.paths.forbidden"},
		{Code: "touches_test_file", Severity: "WARN", Message: "patch touches a test file"},
	}
	err := NewPolicyBlockError(violations)
	if len(err.Violations) != 2 {
		t.Fatalf("len(Violations) = %d, want 2", len(err.Violations))
	}
	if err.Unwrap() == nil {
		t.Error("Unwrap() should not be nil")
	}
}

func TestTransientError_Backoff(t *testing.T) {
	base := 2 * time.Second
	maxDelay := 30 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 3, want: 8 * time.Second},
		{attempt: 4, want: 16 * time.Second},
		{attempt: 5, want: 30 * time.Second}, // would be 32s, capped at max
		{attempt: 10, want: 30 * time.Second},
	}

	for _, c := range cases {
		err := NewTransientError("install_dependencies", c.attempt, base, maxDelay, errors.New("connection refused"))
		if got := err.Backoff(); got != c.want {
			t.Errorf("attempt %d: Backoff() = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestTransientError_Retryable(t *testing.T) {
	err := NewTransientError("clone", 1, time.Second, time.Minute, errors.New("connection refused"))
	if !err.Retryable() {
		t.Error("TransientError.Retryable() should be true")
	}
}

func TestFatalError(t *testing.T) {
	err := NewFatalError("patch touches files outside plan", errors.New("unexpected file: ci.yml"))
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}
	if err.Unwrap() == nil {
		t.Error("Unwrap() should not be nil")
	}
}

func TestIsRetryable(t *testing.T) {
	transient := NewTransientError("clone", 1, time.Second, time.Minute, errors.New("boom"))
	if !IsRetryable(transient) {
		t.Error("IsRetryable(TransientError) should be true")
	}

	fatal := NewFatalError("contract violation", errors.New("boom"))
	if IsRetryable(fatal) {
		t.Error("IsRetryable(FatalError) should be false")
	}

	genericTimeout := errors.New("request timed out after 30s")
	if !IsRetryable(genericTimeout) {
		t.Error("IsRetryable should fall back to substring heuristic for plain errors")
	}
}

func TestBackoffFor(t *testing.T) {
	transient := NewTransientError("clone", 2, time.Second, time.Minute, errors.New("boom"))
	if got := BackoffFor(transient); got != 2*time.Second {
		t.Errorf("BackoffFor(TransientError) = %v, want %v", got, 2*time.Second)
	}

	fatal := NewFatalError("contract violation", errors.New("boom"))
	if got := BackoffFor(fatal); got != 0 {
		t.Errorf("BackoffFor(FatalError) = %v, want 0", got)
	}
}
