package rag

import (
	"errors"
	"fmt"
	"time"
)

// Generation error reason codes. Every GenerationError carries exactly one.
const (
	// ReasonTimeout indicates the model call exceeded its deadline.
	ReasonTimeout = "timeout"

	// ReasonRateLimited indicates the provider rejected the call for quota.
	ReasonRateLimited = "rate_limited"

	// ReasonInvalidRequest indicates the provider rejected the request shape.
	ReasonInvalidRequest = "invalid_request"

	// ReasonUpstreamFailure indicates a provider-side or network failure.
	ReasonUpstreamFailure = "upstream_failure"
)

// ValidationError reports rejected caller input. Requests failing validation
// are rejected before any side effects occur.
type ValidationError struct {
	// Message describes which field was invalid and why.
	Message string

	// Timestamp is when the error was created (UTC).
	Timestamp time.Time
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}

// Validationf constructs a ValidationError with a formatted message.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().UTC(),
	}
}

// ProviderError reports an embedding provider failure.
type ProviderError struct {
	// Provider names the backend that failed (ollama, openai, azure).
	Provider string

	// Message describes the failure.
	Message string

	// Timestamp is when the error was created (UTC).
	Timestamp time.Time

	// Err is the underlying cause, if any.
	Err error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Providerf constructs a ProviderError wrapping err.
func Providerf(provider string, err error, format string, args ...any) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// GenerationError reports a failed LLM generation call. Reason is always one
// of the Reason* constants so callers can branch without string matching the
// message.
type GenerationError struct {
	// Reason is the machine-readable failure class.
	Reason string

	// Message describes the failure.
	Message string

	// Timestamp is when the error was created (UTC).
	Timestamp time.Time

	// Err is the underlying cause, if any.
	Err error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation (%s): %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("generation (%s): %s", e.Reason, e.Message)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generationf constructs a GenerationError with the given reason code.
func Generationf(reason string, err error, format string, args ...any) *GenerationError {
	return &GenerationError{
		Reason:    reason,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// IndexConsistencyError reports an index entry whose document is missing from
// the store. Query paths log and skip these; they surface as errors only from
// maintenance operations.
type IndexConsistencyError struct {
	// DocumentID is the dangling index entry's id.
	DocumentID string

	// Timestamp is when the inconsistency was observed (UTC).
	Timestamp time.Time
}

func (e *IndexConsistencyError) Error() string {
	return fmt.Sprintf("index consistency: no document for indexed id %q", e.DocumentID)
}

// GenerationReason extracts the reason code from err if it is (or wraps) a
// GenerationError, or returns ReasonUpstreamFailure otherwise.
func GenerationReason(err error) string {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Reason
	}
	return ReasonUpstreamFailure
}
