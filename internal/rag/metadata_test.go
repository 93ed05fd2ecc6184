package rag

import (
	"errors"
	"strings"
	"testing"
)

// TestValidateMetadata_Accepted verifies the allowed metadata shapes.
func TestValidateMetadata_Accepted(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		md   map[string]any
	}{
		{"nil", nil},
		{"empty", map[string]any{}},
		{"scalars", map[string]any{
			"author": "alice",
			"year":   2024,
			"score":  0.93,
			"draft":  false,
		}},
		{"one-level nesting", map[string]any{
			"source": map[string]any{"site": "docs", "rank": 3},
		}},
	}

	for _, tc := range cases {
		if err := ValidateMetadata(tc.md); err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

// TestValidateMetadata_Rejected verifies rejected shapes and that the error
// is a ValidationError.
func TestValidateMetadata_Rejected(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		md   map[string]any
	}{
		{"empty key", map[string]any{"": "v"}},
		{"slice value", map[string]any{"tags": []string{"a", "b"}}},
		{"deep nesting", map[string]any{
			"a": map[string]any{"b": map[string]any{"c": 1}},
		}},
		{"nested empty key", map[string]any{"a": map[string]any{"": 1}}},
		{"nil value", map[string]any{"k": nil}},
	}

	for _, tc := range cases {
		err := ValidateMetadata(tc.md)
		if err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %T", tc.name, err)
		}
	}
}

// TestSnippet verifies truncation with ellipsis and pass-through of short content.
func TestSnippet(t *testing.T) {
	t.Parallel()

	if got := Snippet("short", 500); got != "short" {
		t.Errorf("short content must pass through, got %q", got)
	}

	long := strings.Repeat("a", 600)
	got := Snippet(long, 500)
	if len(got) != 503 {
		t.Errorf("expected 500 chars + ellipsis, got %d chars", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated snippet must end with ellipsis, got %q", got[len(got)-5:])
	}

	if got := Snippet("anything", 0); got != "anything" {
		t.Errorf("non-positive maxLen must disable truncation, got %q", got)
	}
}
