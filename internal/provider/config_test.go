package provider

import (
	"os"
	"strings"
	"testing"
)

// TestConfigValidate verifies per-backend required-field checks.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "ollama ok",
			cfg:  Config{Backend: BackendOllama, Ollama: ProviderOllama{Model: "llama3"}},
		},
		{
			name:    "ollama missing model",
			cfg:     Config{Backend: BackendOllama},
			wantErr: "OLLAMA_MODEL",
		},
		{
			name: "openai ok",
			cfg:  Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{APIKey: "sk-x", Model: "gpt-4o"}},
		},
		{
			name:    "openai missing key",
			cfg:     Config{Backend: BackendOpenAI},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "azure ok",
			cfg: Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{
				APIKey: "k", Endpoint: "https://r.openai.azure.com", Deployment: "d",
			}},
		},
		{
			name:    "azure missing endpoint",
			cfg:     Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{APIKey: "k", Deployment: "d"}},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name:    "azure missing deployment",
			cfg:     Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{APIKey: "k", Endpoint: "e"}},
			wantErr: "AZURE_OPENAI_DEPLOYMENT",
		},
		{
			name: "gemini ok",
			cfg:  Config{Backend: BackendGemini, Gemini: ProviderGemini{APIKey: "g"}},
		},
		{
			name:    "gemini missing key",
			cfg:     Config{Backend: BackendGemini},
			wantErr: "GOOGLE_API_KEY",
		},
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "bedrock"},
			wantErr: "unknown backend",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.wantErr)
			}
		})
	}
}

// TestConfigFromEnv_Defaults verifies the documented defaults and overrides.
// Env mutation forbids t.Parallel here.
func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL",
		"MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOllama {
		t.Errorf("default backend: expected ollama, got %q", cfg.Backend)
	}
	if cfg.Ollama.Host != "http://localhost:11434" {
		t.Errorf("default ollama host wrong: %q", cfg.Ollama.Host)
	}
	if cfg.Tuning.MaxTokens != 4096 {
		t.Errorf("default max tokens wrong: %d", cfg.Tuning.MaxTokens)
	}

	t.Setenv("MODEL_PROVIDER", "gemini")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	t.Setenv("MODEL_TEMPERATURE", "0.9")

	cfg = ConfigFromEnv()
	if cfg.Backend != BackendGemini {
		t.Errorf("expected gemini backend, got %q", cfg.Backend)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash" {
		t.Errorf("gemini model override lost: %q", cfg.Gemini.Model)
	}
	if cfg.Tuning.Temperature != 0.9 {
		t.Errorf("temperature override lost: %f", cfg.Tuning.Temperature)
	}
}
