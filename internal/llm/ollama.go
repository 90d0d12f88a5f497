package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/claimalign/internal/util"
)

// OllamaProvider requests fact-checks from a local Ollama server
type OllamaProvider struct {
	baseURL   string
	transport *jsonTransport
	config    Config
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`

	// Only reported once done is true
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

func ollamaErrorText(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 300 * time.Second // Local models are slow on long transcripts
	}

	client := util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy, config.NoProxy)
	return &OllamaProvider{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		transport: newJSONTransport(client, nil, ollamaErrorText),
		config:    config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks that the server answers on /api/tags
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	if err := p.transport.get(ctx, p.baseURL+"/api/tags"); err != nil {
		fmt.Fprintf(os.Stderr, "Ollama availability check failed (%s): %v\n", p.baseURL, err)
		return false
	}
	return true
}

// Analyze requests a fact-check from a local model with JSON output forced
func (p *OllamaProvider) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	prompt, model, maxTokens := requestSettings(req, p.config, "")
	if model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	apiReq := generateRequest{
		Model:  model,
		Prompt: prompt,
		System: SystemPrompt,
		Format: "json",
		Options: generateOptions{
			Temperature: p.config.Temperature,
			NumPredict:  maxTokens,
		},
	}

	var resp generateResponse
	if err := p.transport.post(ctx, p.baseURL+"/api/generate", apiReq, &resp); err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}

	// Some models report zero counts; estimate at ~4 characters per token
	tokensUsed := resp.PromptEvalCount + resp.EvalCount
	if tokensUsed == 0 {
		tokensUsed = (len(prompt) + len(resp.Response)) / 4
	}

	return &AnalyzeResponse{
		Raw:        resp.Response,
		Model:      resp.Model,
		TokensUsed: tokensUsed,
	}, nil
}
