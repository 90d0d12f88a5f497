package llm

import (
	"strings"
	"testing"

	"github.com/ppiankov/claimalign/internal/model"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
		wantErr  bool
	}{
		{"disabled", Config{}, "", false},
		{"openai", Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{"claude alias", Config{Provider: "Claude", APIKey: "k"}, "anthropic", false},
		{"ollama", Config{Provider: "ollama"}, "ollama", false},
		{"openai without key", Config{Provider: "openai"}, "", true},
		{"unknown", Config{Provider: "gemini"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantName == "" {
				if provider != nil {
					t.Errorf("Expected nil provider, got %s", provider.Name())
				}
				return
			}
			if provider == nil || provider.Name() != tt.wantName {
				t.Errorf("Expected provider %s, got %v", tt.wantName, provider)
			}
		})
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(model.LLMConfig{
		Provider:    "ollama",
		Model:       "mistral",
		Timeout:     30,
		MaxTokens:   2000,
		Temperature: 0.1,
		NoProxy:     "localhost",
	})

	if cfg.Provider != "ollama" || cfg.Model != "mistral" {
		t.Errorf("Unexpected provider/model: %s/%s", cfg.Provider, cfg.Model)
	}
	if cfg.Timeout != 30 || cfg.MaxTokens != 2000 || cfg.Temperature != 0.1 {
		t.Errorf("Unexpected limits: %+v", cfg)
	}
	if cfg.NoProxy != "localhost" {
		t.Errorf("Expected NoProxy localhost, got %s", cfg.NoProxy)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("The tower is 300 metres tall.")

	for _, want := range []string{
		"The tower is 300 metres tall.",
		"verified_claims",
		"false_claims",
		"full_transcript_with_highlights",
		"[UNCERTAIN]",
		"fact_score",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

func TestRequestSettings(t *testing.T) {
	prompt, model, maxTokens := requestSettings(AnalyzeRequest{Transcript: "t"}, Config{}, "fallback")
	if !strings.HasSuffix(prompt, "t") {
		t.Errorf("Expected built prompt ending with transcript, got %q", prompt)
	}
	if model != "fallback" {
		t.Errorf("Expected fallback model, got %s", model)
	}
	if maxTokens != 8000 {
		t.Errorf("Expected default max tokens 8000, got %d", maxTokens)
	}

	prompt, model, maxTokens = requestSettings(AnalyzeRequest{Prompt: "custom", Model: "m", MaxTokens: 5}, Config{Model: "c", MaxTokens: 9}, "fallback")
	if prompt != "custom" || model != "m" || maxTokens != 5 {
		t.Errorf("Expected request overrides, got %q %q %d", prompt, model, maxTokens)
	}
}
