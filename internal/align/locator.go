// Package align anchors claim text onto the transcript span it came from.
package align

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/claimalign/internal/model"
)

var errEmptyClaim = errors.New("empty claim text")

// Config holds the cascade thresholds and sizes
type Config struct {
	FuzzyThreshold   float64 // Minimum segment similarity
	WindowThreshold  float64 // Minimum window similarity
	OverlapThreshold float64 // Minimum content-word overlap score
	WindowWords      int     // Words per sliding window
	WindowOverlap    int     // Words shared by consecutive windows
	CommaSplitChars  int     // Segments longer than this are also split at commas
	MinPhraseWords   int     // Shortest key phrase
	MaxPhraseWords   int     // Longest key phrase
}

// DefaultConfig returns the tuned defaults
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold:   0.45,
		WindowThreshold:  0.45,
		OverlapThreshold: 0.40,
		WindowWords:      75,
		WindowOverlap:    25,
		CommaSplitChars:  150,
		MinPhraseWords:   3,
		MaxPhraseWords:   5,
	}
}

// ConfigFromModel converts the file/env configuration section
func ConfigFromModel(c model.LocatorConfig) Config {
	return Config{
		FuzzyThreshold:   c.FuzzyThreshold,
		WindowThreshold:  c.WindowThreshold,
		OverlapThreshold: c.OverlapThreshold,
		WindowWords:      c.WindowWords,
		WindowOverlap:    c.WindowOverlap,
		CommaSplitChars:  c.CommaSplitChars,
		MinPhraseWords:   c.MinPhraseWords,
		MaxPhraseWords:   c.MaxPhraseWords,
	}
}

// Locator runs the matching cascade. It is read-only after construction and
// safe for concurrent use.
type Locator struct {
	cfg Config
}

// NewLocator creates a locator; zero or inconsistent settings fall back to
// the defaults
func NewLocator(cfg Config) *Locator {
	def := DefaultConfig()
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = def.FuzzyThreshold
	}
	if cfg.WindowThreshold <= 0 {
		cfg.WindowThreshold = def.WindowThreshold
	}
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = def.OverlapThreshold
	}
	if cfg.WindowWords <= 0 {
		cfg.WindowWords = def.WindowWords
	}
	if cfg.WindowOverlap < 0 || cfg.WindowOverlap >= cfg.WindowWords {
		cfg.WindowOverlap = min(def.WindowOverlap, cfg.WindowWords-1)
	}
	if cfg.CommaSplitChars <= 0 {
		cfg.CommaSplitChars = def.CommaSplitChars
	}
	if cfg.MinPhraseWords <= 0 {
		cfg.MinPhraseWords = def.MinPhraseWords
	}
	if cfg.MaxPhraseWords < cfg.MinPhraseWords {
		cfg.MaxPhraseWords = max(def.MaxPhraseWords, cfg.MinPhraseWords)
	}
	return &Locator{cfg: cfg}
}

// Config returns the effective configuration
func (l *Locator) Config() Config {
	return l.cfg
}

// Locate finds a span for every claim. Results come back in processing
// order (longest claim text first, stable on ties) with Index pointing at
// the claim's position in claims.
func (l *Locator) Locate(transcript string, claims []model.Claim) []model.MatchResult {
	order := make([]int, len(claims))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return claimLen(claims[order[a]]) > claimLen(claims[order[b]])
	})

	idx := newTranscriptIndex(transcript, l.cfg)
	results := make([]model.MatchResult, 0, len(claims))
	var occupied []model.Span

	for _, i := range order {
		result := model.MatchResult{
			Index:  i,
			Claim:  &claims[i],
			Status: model.StatusUnmatched,
		}

		if c, ok := l.match(idx, claims[i].Text, occupied); ok {
			span := c.span
			result.Span = &span
			result.Strategy = c.strategy
			result.Score = c.score
			result.Status = model.StatusMatched
			occupied = append(occupied, span)
		}

		results = append(results, result)
	}

	return results
}

func claimLen(c model.Claim) int {
	return utf8.RuneCountInString(strings.TrimSpace(c.Text))
}

// candidate is a strategy hit
type candidate struct {
	span     model.Span
	strategy model.Strategy
	score    float64
}

// match runs the cascade; the first strategy to succeed wins
func (l *Locator) match(idx *transcriptIndex, text string, occupied []model.Span) (candidate, bool) {
	if strings.TrimSpace(text) == "" || idx.transcript == "" {
		return candidate{}, false
	}

	claimTokens := tokenize(text, 0)
	q := query{
		text:    joinWords(claimTokens),
		content: contentWords(claimTokens),
	}

	if c, ok := exactMatch(idx.transcript, text, occupied); ok {
		return c, true
	}
	if q.text == "" {
		return candidate{}, false
	}

	strategies := []func(*transcriptIndex, query) (candidate, bool){
		l.fuzzySegment,
		l.slidingWindow,
		l.keyPhrase,
		l.wordOverlap,
	}
	for _, s := range strategies {
		if c, ok := s(idx, q); ok {
			return c, true
		}
	}
	return candidate{}, false
}
