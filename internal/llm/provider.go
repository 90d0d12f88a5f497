package llm

import (
	"context"
	"fmt"
)

// Provider defines the interface for fact-check generation backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Analyze asks the model for a fact-check of the transcript and returns
	// its raw, unvalidated text
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// AnalyzeRequest contains the input for one fact-check generation
type AnalyzeRequest struct {
	// Transcript is the text to fact-check
	Transcript string

	// Prompt is an optional custom prompt (if empty, use BuildPrompt)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// AnalyzeResponse contains the model output
type AnalyzeResponse struct {
	// Raw is the text exactly as returned; it is frequently not valid JSON
	Raw string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation. Annotated transcripts are long, so
	// this is much larger than a summary would need.
	MaxTokens int

	// Temperature for sampling
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Model:       "",
		Timeout:     120,
		MaxTokens:   8000,
		Temperature: 0.2,
	}
}

// SystemPrompt frames every fact-check request
const SystemPrompt = "You are a careful fact-checker. You answer with a single JSON object and nothing else."

// BuildPrompt constructs the default fact-check prompt for a transcript.
// The payload shape it asks for is what the decoder understands natively.
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(`Fact-check the following video transcript.

For every factual claim or statement:
1. Identify the claim, quoting the transcript words as closely as possible
2. Assess its accuracy if possible
3. Note claims that cannot be verified
4. Flag potential misinformation or bias
5. Give brief context or sources where helpful

Respond with ONE JSON object using exactly these keys:
{
  "fact_score": <number from 0 to 10>,
  "overall_verdict": "<one short sentence>",
  "summary": "<2-4 sentences>",
  "red_flags": ["<string>", ...],
  "verified_claims": [{"claim": "<transcript quote>", "timestamp": "<mm:ss or empty>", "explanation": "<why>", "sources": ["<url or title>"], "confidence": "high|medium|low"}],
  "opinion_claims": [ same shape ],
  "uncertain_claims": [ same shape ],
  "false_claims": [ same shape ],
  "full_transcript_with_highlights": "<the COMPLETE transcript, unchanged, with each claim wrapped in [VERIFIED]...[/VERIFIED], [OPINION]...[/OPINION], [UNCERTAIN]...[/UNCERTAIN] or [FALSE]...[/FALSE]>"
}

Rules:
- Quote claims verbatim from the transcript; do not paraphrase.
- Do not shorten or summarize the transcript inside full_transcript_with_highlights.
- Do not wrap the JSON in code fences or add any text around it.

Transcript:
%s`, transcript)
}

// requestSettings resolves per-request overrides against the provider config
func requestSettings(req AnalyzeRequest, config Config, defaultModel string) (prompt, model string, maxTokens int) {
	prompt = req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Transcript)
	}

	model = req.Model
	if model == "" {
		model = config.Model
	}
	if model == "" {
		model = defaultModel
	}

	maxTokens = req.MaxTokens
	if maxTokens == 0 {
		maxTokens = config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = DefaultConfig().MaxTokens
	}
	return prompt, model, maxTokens
}
