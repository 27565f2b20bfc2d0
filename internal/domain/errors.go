package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store read paths when no row exists for a key.
// A miss is a normal branch outcome for the router, not a fault.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a request before any store access.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Upstream failure reasons.
const (
	UpstreamCredential = "credential"
	UpstreamTransport  = "transport"
	UpstreamRateLimit  = "rate_limit"
)

// UpstreamError wraps a failure from the live provider (invalid credential,
// transport failure, rate limit). It is propagated to the caller with the
// upstream's message, never swallowed into a zero-valued payload.
type UpstreamError struct {
	Reason string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("upstream %s error", e.Reason)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
