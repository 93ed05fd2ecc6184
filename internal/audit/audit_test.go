package audit

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestSanitiseKey verifies that secret keys reduce to presence while
// non-secret keys pass through.
func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key   string
		value string
		want  string
	}{
		{"OPENAI_API_KEY", "sk-abc123", "set"},
		{"OPENAI_API_KEY", "", "unset"},
		{"RAGSERVE_API_KEY", "token", "set"},
		{"LANGFUSE_SECRET_KEY", "sk-lf-x", "set"},
		{"MODEL_PROVIDER", "ollama", "ollama"},
		{"MODEL_PROVIDER", "", "unset"},
		{"QDRANT_HOST", "localhost", "localhost"},
	}

	for _, tc := range cases {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

// TestLogCommandStart_RedactsSecrets verifies that the audit entry never
// contains a secret value, only its presence. Env mutation forbids t.Parallel.
func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-super-secret-value")
	t.Setenv("MODEL_PROVIDER", "openai")

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	LogCommandStart(log, "serve", "/etc/ragserve/config.yaml")

	out := buf.String()
	if strings.Contains(out, "sk-super-secret-value") {
		t.Error("secret value leaked into audit log")
	}
	if !strings.Contains(out, "OPENAI_API_KEY=set") {
		t.Errorf("secret presence missing from audit log: %s", out)
	}
	if !strings.Contains(out, "MODEL_PROVIDER=openai") {
		t.Errorf("non-secret value missing from audit log: %s", out)
	}
	if !strings.Contains(out, "command=serve") {
		t.Errorf("command name missing from audit log: %s", out)
	}
}

// TestSanitiseConfigPath verifies home directory redaction and the "none"
// fallback.
func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()

	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("empty path: expected none, got %q", got)
	}
	if got := sanitiseConfigPath("/etc/ragserve.yaml"); got != "/etc/ragserve.yaml" {
		t.Errorf("non-home path changed: %q", got)
	}
}
