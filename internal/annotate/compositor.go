package annotate

import (
	"slices"
	"sort"
	"unicode/utf8"

	"github.com/ppiankov/claimalign/internal/model"
)

// TaggedSpan is a transcript span that received markers
type TaggedSpan struct {
	Span     model.Span     `json:"span" yaml:"span"`
	Category model.Category `json:"category" yaml:"category"`
	Index    int            `json:"index" yaml:"index"` // Claim index that owns the span
}

// Result is the output of one composition
type Result struct {
	Text    string              // Annotated transcript
	Spans   []TaggedSpan        // Accepted spans, ascending by start
	Matches []model.MatchResult // Input matches with superseded ones rewritten
}

// Compositor inserts category markers around located claim spans
type Compositor struct{}

// NewCompositor creates a new compositor
func NewCompositor() *Compositor {
	return &Compositor{}
}

// Compose annotates transcript with the spans of matches.
// Matches are expected in processing order: when two spans overlap, the
// earlier match keeps its span and the later one is superseded.
// The input slice is not modified.
func (c *Compositor) Compose(transcript string, matches []model.MatchResult) Result {
	out := make([]model.MatchResult, len(matches))
	copy(out, matches)

	var accepted []TaggedSpan

	for i := range out {
		m := &out[i]
		if m.Span == nil {
			continue
		}

		if m.Claim == nil || !m.Claim.Category.Valid() || !validSpan(transcript, *m.Span) {
			m.Span = nil
			m.Status = model.StatusUnmatched
			continue
		}

		if owner, ok := overlapping(accepted, *m.Span); ok {
			idx := owner.Index
			m.Span = nil
			m.Status = model.StatusSuperseded
			m.SupersededBy = &idx
			continue
		}

		m.Status = model.StatusMatched
		accepted = append(accepted, TaggedSpan{
			Span:     *m.Span,
			Category: m.Claim.Category,
			Index:    m.Index,
		})
	}

	return Result{
		Text:    insertMarkers(transcript, accepted),
		Spans:   sortSpans(accepted),
		Matches: out,
	}
}

// insertMarkers applies all insertions in one pass, right to left, so that
// earlier offsets stay valid
func insertMarkers(transcript string, spans []TaggedSpan) string {
	if len(spans) == 0 {
		return transcript
	}

	ordered := slices.Clone(spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Span.Start > ordered[j].Span.Start
	})

	buf := []byte(transcript)
	for _, s := range ordered {
		openTag, closeTag := Markers(s.Category)
		buf = slices.Insert(buf, s.Span.End, []byte(closeTag)...)
		buf = slices.Insert(buf, s.Span.Start, []byte(openTag)...)
	}
	return string(buf)
}

// validSpan reports whether s is a non-empty in-range span on rune boundaries
func validSpan(text string, s model.Span) bool {
	if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
		return false
	}
	if !utf8.RuneStart(text[s.Start]) {
		return false
	}
	return s.End == len(text) || utf8.RuneStart(text[s.End])
}

func overlapping(accepted []TaggedSpan, s model.Span) (TaggedSpan, bool) {
	for _, a := range accepted {
		if a.Span.Overlaps(s) {
			return a, true
		}
	}
	return TaggedSpan{}, false
}

func sortSpans(spans []TaggedSpan) []TaggedSpan {
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Span.Start < spans[j].Span.Start
	})
	return spans
}
