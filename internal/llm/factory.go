package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/claimalign/internal/model"
)

// NewProvider creates a new LLM provider based on configuration.
// An empty provider name disables generation and returns nil, nil.
func NewProvider(config Config) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	// Constructors return concrete pointers; keep a failed one from becoming
	// a non-nil interface
	switch strings.ToLower(config.Provider) {
	case "openai":
		var p *OpenAIProvider
		if p, err = NewOpenAIProvider(config); err == nil {
			provider = p
		}

	case "anthropic", "claude":
		var p *AnthropicProvider
		if p, err = NewAnthropicProvider(config); err == nil {
			provider = p
		}

	case "ollama":
		var p *OllamaProvider
		if p, err = NewOllamaProvider(config); err == nil {
			provider = p
		}

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}

	if err != nil {
		return nil, err
	}
	return provider, nil
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:    modelConfig.Provider,
		Model:       modelConfig.Model,
		APIKey:      modelConfig.APIKey,
		BaseURL:     modelConfig.BaseURL,
		Timeout:     modelConfig.Timeout,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		HTTPProxy:   modelConfig.HTTPProxy,
		HTTPSProxy:  modelConfig.HTTPSProxy,
		NoProxy:     modelConfig.NoProxy,
	}
}
