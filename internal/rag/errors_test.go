package rag

import (
	"errors"
	"fmt"
	"testing"
)

// TestGenerationReason verifies reason extraction through wrapped chains.
func TestGenerationReason(t *testing.T) {
	t.Parallel()

	direct := Generationf(ReasonRateLimited, nil, "quota exceeded")
	if got := GenerationReason(direct); got != ReasonRateLimited {
		t.Errorf("direct: expected %q, got %q", ReasonRateLimited, got)
	}

	wrapped := fmt.Errorf("pipeline: %w", Generationf(ReasonTimeout, nil, "deadline"))
	if got := GenerationReason(wrapped); got != ReasonTimeout {
		t.Errorf("wrapped: expected %q, got %q", ReasonTimeout, got)
	}

	if got := GenerationReason(errors.New("plain")); got != ReasonUpstreamFailure {
		t.Errorf("non-generation error: expected %q, got %q", ReasonUpstreamFailure, got)
	}
}

// TestErrorKinds_ErrorsAs verifies that the typed kinds survive wrapping and
// that Unwrap exposes the underlying cause.
func TestErrorKinds_ErrorsAs(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	pe := Providerf("ollama", cause, "embed request failed")

	wrapped := fmt.Errorf("rag: query embedding failed: %w", pe)

	var target *ProviderError
	if !errors.As(wrapped, &target) {
		t.Fatal("ProviderError lost through wrapping")
	}
	if target.Provider != "ollama" {
		t.Errorf("expected provider ollama, got %q", target.Provider)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("underlying cause lost through wrapping")
	}

	ve := Validationf("title must not be empty")
	var vt *ValidationError
	if !errors.As(fmt.Errorf("outer: %w", ve), &vt) {
		t.Error("ValidationError lost through wrapping")
	}
	if ve.Timestamp.IsZero() {
		t.Error("ValidationError missing timestamp")
	}
}
