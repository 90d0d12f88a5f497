// Package pipeline wires the decoder, locator, compositor and scorer into a
// single run over one transcript.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/claimalign/internal/align"
	"github.com/ppiankov/claimalign/internal/annotate"
	"github.com/ppiankov/claimalign/internal/cache"
	"github.com/ppiankov/claimalign/internal/decode"
	"github.com/ppiankov/claimalign/internal/llm"
	"github.com/ppiankov/claimalign/internal/model"
	"github.com/ppiankov/claimalign/internal/score"
)

// Annotation sources recorded on the report
const (
	SourceService = "service"
	SourceLocal   = "local"
)

var (
	// ErrNoRawOutput is returned when an input has no service output and no
	// provider is configured to generate one
	ErrNoRawOutput = errors.New("no service output and no provider configured")

	errEmptyTranscript = errors.New("transcript is empty")
)

// Input is one transcript to align
type Input struct {
	Subject    string
	Transcript string
	Raw        string // Service output; generated through the provider when empty
}

// Pipeline orchestrates the complete alignment process
type Pipeline struct {
	decoder    *decode.Decoder
	locator    *align.Locator
	compositor *annotate.Compositor
	scorer     *score.Scorer
	renderer   *Renderer
	provider   llm.Provider // Optional (nil if disabled)
	cache      cache.Cache  // Optional (nil if disabled)
	logger     *slog.Logger
	config     *model.Config
	now        func() time.Time
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithProvider sets the provider used when an input carries no service output
func WithProvider(provider llm.Provider) Option {
	return func(p *Pipeline) { p.provider = provider }
}

// WithCache memoizes generated service output
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// withClock fixes report timestamps in tests
func withClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}

	p := &Pipeline{
		decoder:    decode.NewDecoder(decode.ConfigFromModel(cfg.Decoder)),
		locator:    align.NewLocator(align.ConfigFromModel(cfg.Locator)),
		compositor: annotate.NewCompositor(),
		scorer:     score.NewScorer(),
		renderer:   NewRenderer(cfg.Output.IncludeFooter),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		config:     cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provider returns the configured provider, or nil
func (p *Pipeline) Provider() llm.Provider {
	return p.provider
}

// Process runs one input end to end, generating the service output first
// when the input does not carry it
func (p *Pipeline) Process(ctx context.Context, in Input) (*model.Report, error) {
	if strings.TrimSpace(in.Transcript) == "" {
		return nil, errEmptyTranscript
	}

	if in.Raw == "" {
		if p.provider == nil {
			return nil, ErrNoRawOutput
		}
		raw, err := p.generate(ctx, in.Transcript)
		if err != nil {
			return nil, fmt.Errorf("generate analysis: %w", err)
		}
		in.Raw = raw
	}

	return p.Analyze(in), nil
}

// generate asks the provider for a fact-check, reusing a cached answer for
// the same provider, model and transcript
func (p *Pipeline) generate(ctx context.Context, transcript string) (string, error) {
	key := cache.Key(p.provider.Name(), p.config.LLM.Model, cache.ContentHash(transcript))
	logger := p.logger.With("provider", p.provider.Name(), "model", p.config.LLM.Model)

	if p.cache != nil {
		if val, found := p.cache.Get(key); found {
			logger.Debug("using cached service output", "bytes", len(val))
			return string(val), nil
		}
	}

	start := p.now()
	resp, err := p.provider.Analyze(ctx, llm.AnalyzeRequest{
		Transcript: transcript,
		Model:      p.config.LLM.Model,
		MaxTokens:  p.config.LLM.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	logger.Info("service output generated",
		"bytes", len(resp.Raw),
		"tokens", resp.TokensUsed,
		"elapsed", p.now().Sub(start))

	if p.cache != nil {
		ttl := time.Duration(p.config.Cache.TTLSeconds) * time.Second
		if err := p.cache.Set(key, []byte(resp.Raw), ttl); err != nil {
			logger.Warn("caching service output failed", "error", err)
		}
	}

	return resp.Raw, nil
}

// Analyze runs the pure core: decode, locate, compose and score.
// It never fails; every problem is reported through the report itself.
func (p *Pipeline) Analyze(in Input) *model.Report {
	logger := p.logger.With("subject", in.Subject)

	// 1. Recover the claim record
	res := p.decoder.Decode(in.Raw, in.Transcript)
	report := &model.Report{
		Subject: in.Subject,
		Decode:  res.Info(),
		Matches: []model.MatchResult{},
	}
	p.logDecode(logger, res)

	var claims []model.Claim
	if res.Unstructured {
		report.Raw = res.Raw
	} else {
		report.Claims = res.Claims
		claims = res.Claims.Claims
	}

	// 2. Anchor every claim on the transcript
	matches := p.locator.Locate(in.Transcript, claims)

	// 3. Insert markers; overlaps are resolved here
	composed := p.compositor.Compose(in.Transcript, matches)
	report.Matches = composed.Matches
	report.AnnotatedTranscript = composed.Text
	report.AnnotationSource = SourceLocal

	if res.Claims != nil && p.trustAnnotation(res.Claims.AnnotatedTranscript, in.Transcript) {
		report.AnnotatedTranscript = res.Claims.AnnotatedTranscript
		report.AnnotationSource = SourceService
	} else if res.Claims != nil && res.Claims.AnnotatedTranscript != "" {
		logger.Info("service annotation does not reproduce the transcript, composing locally")
	}
	p.logMatches(logger, report.Matches)

	// 4. Score
	report.Score = p.scorer.Calculate(report.Decode, report.Matches)
	report.GeneratedAt = p.now().UTC()

	logger.Debug("alignment complete",
		"claims", len(claims),
		"matched", report.Score.Matched,
		"index", report.Score.Index,
		"annotation_source", report.AnnotationSource)

	return report
}

// trustAnnotation accepts a service annotation only when removing its
// markers gives back the transcript exactly
func (p *Pipeline) trustAnnotation(annotation, transcript string) bool {
	if annotation == "" {
		return false
	}
	return annotate.StripMarkers(annotation) == transcript
}

func (p *Pipeline) logDecode(logger *slog.Logger, res decode.Result) {
	switch {
	case res.Unstructured:
		logger.Warn("service output could not be decoded", "failures", len(res.Failures))
	case res.Pass != decode.PassDirect:
		logger.Info("service output repaired", "pass", res.Pass.String(), "failures", len(res.Failures))
	}
	if res.AnnotationStripped {
		logger.Warn("annotation field removed to decode payload")
	}
	if res.Claims != nil && res.Claims.AnnotationRejected {
		logger.Warn("service annotation truncated, composing locally")
	}
}

func (p *Pipeline) logMatches(logger *slog.Logger, matches []model.MatchResult) {
	for _, m := range matches {
		switch m.Status {
		case model.StatusUnmatched:
			logger.Info("claim not located", "index", m.Index, "category", string(m.Claim.Category))
		case model.StatusSuperseded:
			logger.Info("claim superseded by overlapping claim",
				"index", m.Index,
				"superseded_by", *m.SupersededBy,
				"strategy", string(m.Strategy))
		default:
			logger.Debug("claim located", "index", m.Index, "strategy", string(m.Strategy), "score", m.Score)
		}
	}
}

// Outputs names the files a report is written to; empty paths are skipped
type Outputs struct {
	JSON     string
	YAML     string
	Markdown string
	Text     string
}

// RenderReport renders the report to the requested outputs and prints the
// summary to w
func (p *Pipeline) RenderReport(report *model.Report, out Outputs, w io.Writer, verbose bool) error {
	targets := []struct {
		path   string
		format Format
	}{
		{out.JSON, FormatJSON},
		{out.YAML, FormatYAML},
		{out.Markdown, FormatMarkdown},
		{out.Text, FormatText},
	}

	for _, t := range targets {
		if t.path == "" {
			continue
		}
		if err := p.renderer.RenderFile(report, t.format, t.path); err != nil {
			return fmt.Errorf("render %s: %w", t.format, err)
		}
		if verbose {
			fmt.Fprintf(w, "✓ Wrote %s: %s\n", t.format, t.path)
		}
	}

	p.renderer.RenderSummary(w, report)
	return nil
}

// Renderer returns the pipeline's report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}
