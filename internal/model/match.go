package model

// Span is a half-open byte range [Start, End) into the transcript
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the span length in bytes
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether the two spans share at least one byte
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Strategy names the matching algorithm that located a claim
type Strategy string

const (
	StrategyNone          Strategy = ""
	StrategyExact         Strategy = "exact"          // Case/whitespace-insensitive literal search
	StrategyFuzzySegment  Strategy = "fuzzy_segment"  // Best similarity over sentence-like segments
	StrategySlidingWindow Strategy = "sliding_window" // Best similarity over overlapping word windows
	StrategyKeyPhrase     Strategy = "key_phrase"     // Content-word phrase hit expanded to its sentence
	StrategyWordOverlap   Strategy = "word_overlap"   // Content vocabulary coverage
)

// Strategies lists the cascade in the order it is tried
var Strategies = []Strategy{
	StrategyExact,
	StrategyFuzzySegment,
	StrategySlidingWindow,
	StrategyKeyPhrase,
	StrategyWordOverlap,
}

// MatchStatus is the outcome of locating and composing a claim
type MatchStatus string

const (
	StatusMatched    MatchStatus = "matched"
	StatusUnmatched  MatchStatus = "unmatched"  // No strategy cleared its threshold
	StatusSuperseded MatchStatus = "superseded" // Span overlapped text owned by an earlier claim
)

// MatchResult records where (if anywhere) a claim was anchored
type MatchResult struct {
	Index        int         `json:"index" yaml:"index"` // Position of the claim in the Locator input
	Claim        *Claim      `json:"claim" yaml:"claim"`
	Span         *Span       `json:"span,omitempty" yaml:"span,omitempty"`
	Strategy     Strategy    `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Score        float64     `json:"score" yaml:"score"`
	Status       MatchStatus `json:"status" yaml:"status"`
	SupersededBy *int        `json:"superseded_by,omitempty" yaml:"superseded_by,omitempty"`
}

// Matched reports whether the claim ended up with a span
func (m MatchResult) Matched() bool {
	return m.Status == StatusMatched && m.Span != nil
}
