// Package errors provides generic, structured error helpers shared across
// the fix pipeline. It favors explicit wrapping with contextual fields over
// bare fmt.Errorf, so operators can tell which component and resource an
// error came from without parsing free-form strings.
package errors

import (
	"fmt"
	"strings"
)

// OperationError describes a failed operation with optional component and
// resource context. It implements error and Unwrap so callers can use
// errors.Is/errors.As against the wrapped cause.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to %s", e.Operation)
	if e.Component != "" {
		fmt.Fprintf(&b, ", component: %s", e.Component)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ", cause: %s", e.Cause.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo wraps cause as "failed to <action>: <cause>", or returns just
// "failed to <action>" when cause is nil. The result unwraps to cause.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return fmt.Errorf("failed to %s", action)
	}
	return fmt.Errorf("failed to %s: %w", action, cause)
}

// FailedToWithDetails builds an OperationError with component and resource
// context attached.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{Operation: action, Component: component, Resource: resource, Cause: cause}
}

// Wrapf prefixes err with a formatted message, in the style of pkg/errors.Wrapf.
// Returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// DatabaseError wraps a database operation failure.
func DatabaseError(operation string, cause error) error {
	return &OperationError{Operation: operation, Component: "database", Cause: cause}
}

// NetworkError wraps a network operation failure against a named endpoint.
func NetworkError(operation, endpoint string, cause error) error {
	return &OperationError{Operation: operation, Component: "network", Resource: endpoint, Cause: cause}
}

// ValidationError reports that a field failed validation.
func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

// ConfigurationError reports a bad configuration setting.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// TimeoutError reports an operation that exceeded its allotted duration.
func TimeoutError(operation, duration string) error {
	return fmt.Errorf("timeout while %s after %s", operation, duration)
}

// AuthenticationError reports a failed authentication attempt.
func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

// AuthorizationError reports an authorization failure for an action against
// a resource.
func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

// ParseError reports a failure parsing a resource in a given format.
func ParseError(resource, format string, cause error) error {
	return &OperationError{Operation: fmt.Sprintf("parse %s as %s", resource, format), Cause: cause}
}

var retryableSubstrings = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"service unavailable",
	"temporarily unavailable",
	"too many requests",
	"EOF",
}

// IsRetryable does a best-effort classification of an error's message to
// decide whether the caller should retry. It is a fallback for errors that
// did not originate from this package's typed constructors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// Chain joins multiple non-nil errors into a single error. Returns nil if
// every input is nil, and the bare error if exactly one is non-nil.
func Chain(errs ...error) error {
	var nonNil []string
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e.Error())
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", nonNil[0])
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(nonNil, "; "))
	}
}
