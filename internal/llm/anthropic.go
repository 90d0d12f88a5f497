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

const (
	anthropicVersion      = "2023-06-01"
	anthropicDefaultModel = "claude-3-5-sonnet-20241022"
	anthropicPingModel    = "claude-3-5-haiku-20241022"
)

// AnthropicProvider requests fact-checks through the Anthropic Messages API
type AnthropicProvider struct {
	baseURL   string
	transport *jsonTransport
	config    Config
}

type messagesRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []messagesEntry `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type messagesEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// anthropicErrorText extracts "type - message" from an error body
func anthropicErrorText(body []byte) string {
	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Message == "" {
		return ""
	}
	return payload.Error.Type + " - " + payload.Error.Message
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	client := util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy, config.NoProxy)
	headers := map[string]string{
		"x-api-key":         config.APIKey,
		"anthropic-version": anthropicVersion,
	}

	return &AnthropicProvider{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		transport: newJSONTransport(client, headers, anthropicErrorText),
		config:    config,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable sends a minimal message with the cheapest model
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	ping := messagesRequest{
		Model:     anthropicPingModel,
		MaxTokens: 10,
		Messages:  []messagesEntry{{Role: "user", Content: "Hi"}},
	}

	var resp messagesResponse
	if err := p.transport.post(ctx, p.baseURL+"/v1/messages", ping, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Anthropic API check failed: %v\n", err)
		return false
	}
	return true
}

// Analyze requests a fact-check through the Messages API.
// All text blocks of the reply are concatenated; a reply cut off by
// max_tokens is still returned so the decoder can try to recover it.
func (p *AnthropicProvider) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	prompt, model, maxTokens := requestSettings(req, p.config, anthropicDefaultModel)

	apiReq := messagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      SystemPrompt,
		Messages:    []messagesEntry{{Role: "user", Content: prompt}},
		Temperature: p.config.Temperature,
	}

	var resp messagesResponse
	if err := p.transport.post(ctx, p.baseURL+"/v1/messages", apiReq, &resp); err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no content in Anthropic response (stop_reason=%q)", resp.StopReason)
	}

	return &AnalyzeResponse{
		Raw:        text.String(),
		Model:      resp.Model,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}
