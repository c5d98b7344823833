// Package apperrors defines the stable error taxonomy surfaced to callers.
// Every degraded or rejected response carries a Kind plus a correlation ID
// so support can trace it without leaking internal detail.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind is a stable, machine-readable error classification.
type Kind string

const (
	// KindDependencyUnavailable is a probe-level failure. It is absorbed into
	// health scoring and never surfaced raw to request handlers.
	KindDependencyUnavailable Kind = "dependency_unavailable"
	// KindAllProvidersExhausted means every ranked endpoint was open or errored.
	// Retryable by the caller (5xx-equivalent).
	KindAllProvidersExhausted Kind = "all_providers_exhausted"
	// KindGenerationDisabled means the operational mode currently forbids
	// generation. Not retryable now; try again when health recovers.
	KindGenerationDisabled Kind = "generation_disabled_by_mode"
	// KindFirewallRejected is a terminal stage-1 safety rejection.
	KindFirewallRejected Kind = "firewall_rejected"
	// KindPolicyDenied is a terminal stage-2 safety rejection.
	KindPolicyDenied Kind = "policy_denied"
	// KindRequestCancelled means the caller abandoned the request mid-flight.
	// The cause chain keeps the original context error for errors.Is.
	KindRequestCancelled Kind = "request_cancelled"
	// KindQueueUnavailable means job storage refused the enqueue. Retryable.
	KindQueueUnavailable Kind = "queue_unavailable"
	// KindJobExhausted is a terminal job failure after max attempts.
	KindJobExhausted Kind = "job_exhausted"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyInProgress = errors.New("operation already in progress")
	ErrLeaseHeld         = errors.New("job lease held by another worker")
)

// Error is a classified application error with a correlation ID for tracing.
type Error struct {
	Kind          Kind
	Reason        string // Human-readable, safe for audit logs and clients
	CorrelationID string
	Retryable     bool
	Cause         error // Internal only, never serialized to clients
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// New creates a classified error with a fresh correlation ID.
func New(kind Kind, reason string, retryable bool) *Error {
	return &Error{
		Kind:          kind,
		Reason:        reason,
		CorrelationID: uuid.New().String(),
		Retryable:     retryable,
	}
}

// Wrap creates a classified error around an internal cause.
func Wrap(kind Kind, reason string, retryable bool, cause error) *Error {
	e := New(kind, reason, retryable)
	e.Cause = cause
	return e
}

// KindOf extracts the Kind from an error, or "" if it is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CorrelationOf extracts the correlation ID from an error, or "" if absent.
func CorrelationOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.CorrelationID
	}
	return ""
}
