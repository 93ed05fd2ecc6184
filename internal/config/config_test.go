package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeConfig writes a YAML config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoad_AppliesYAMLAsEnvDefaults verifies that non-empty YAML values land
// in the environment. Env mutation forbids t.Parallel throughout this file.
func TestLoad_AppliesYAMLAsEnvDefaults(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("QDRANT_HOST", "")
	t.Setenv("CACHE_SEARCH_TTL", "")
	os.Unsetenv("MODEL_PROVIDER")
	os.Unsetenv("OLLAMA_MODEL")
	os.Unsetenv("QDRANT_HOST")
	os.Unsetenv("CACHE_SEARCH_TTL")

	path := writeConfig(t, `
model:
  provider: ollama
  ollama:
    model: llama3
index:
  qdrant_host: qdrant.internal
cache:
  search_ttl: 1800
`)

	loaded, err := Load(path, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != path {
		t.Errorf("expected loaded path %q, got %q", path, loaded)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "ollama" {
		t.Errorf("MODEL_PROVIDER: expected ollama, got %q", got)
	}
	if got := os.Getenv("OLLAMA_MODEL"); got != "llama3" {
		t.Errorf("OLLAMA_MODEL: expected llama3, got %q", got)
	}
	if got := os.Getenv("QDRANT_HOST"); got != "qdrant.internal" {
		t.Errorf("QDRANT_HOST: expected qdrant.internal, got %q", got)
	}
	if got := os.Getenv("CACHE_SEARCH_TTL"); got != "1800" {
		t.Errorf("CACHE_SEARCH_TTL: expected 1800, got %q", got)
	}
}

// TestLoad_EnvWins verifies that an already-set env var is never overwritten
// by a YAML value.
func TestLoad_EnvWins(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "openai")

	path := writeConfig(t, `
model:
  provider: ollama
`)

	if _, err := Load(path, testLogger()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("MODEL_PROVIDER"); got != "openai" {
		t.Errorf("env var overwritten by YAML: got %q", got)
	}
}

// TestLoad_NoFile verifies that a missing config file is not an error: the
// system runs from env vars alone.
func TestLoad_NoFile(t *testing.T) {
	t.Setenv("RAGSERVE_CONFIG", "")
	t.Setenv("HOME", t.TempDir()) // keep ~/.ragserve/config.yaml out of reach

	loaded, err := Load("", testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != "" {
		t.Errorf("expected no file loaded, got %q", loaded)
	}
}

// TestLoad_MalformedYAML verifies the parse error path.
func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "model: [unclosed")

	if _, err := Load(path, testLogger()); err == nil {
		t.Error("expected parse error for malformed YAML")
	}
}

// TestLoad_RespectsExplicitPathMiss verifies that an explicit path that does
// not exist falls back to env-only operation rather than probing other
// locations.
func TestLoad_RespectsExplicitPathMiss(t *testing.T) {
	t.Setenv("RAGSERVE_CONFIG", "")

	loaded, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != "" {
		t.Errorf("expected no file loaded for absent explicit path, got %q", loaded)
	}
}

// TestLoad_ZeroValuesSkipped verifies that zero/false YAML values are not
// exported as env vars.
func TestLoad_ZeroValuesSkipped(t *testing.T) {
	t.Setenv("QDRANT_TLS", "")
	t.Setenv("RAGSERVE_PORT", "")
	os.Unsetenv("QDRANT_TLS")
	os.Unsetenv("RAGSERVE_PORT")

	path := writeConfig(t, `
index:
  tls: false
server:
  port: 0
`)

	if _, err := Load(path, testLogger()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, set := os.LookupEnv("QDRANT_TLS"); set {
		t.Error("false bool exported as env var")
	}
	if _, set := os.LookupEnv("RAGSERVE_PORT"); set {
		t.Error("zero int exported as env var")
	}
}
