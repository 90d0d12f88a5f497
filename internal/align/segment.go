package align

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/claimalign/internal/model"
)

var (
	sentenceEnd = regexp.MustCompile(`[.!?]+["')\]]*(?:\s+|$)`)
	lineBreak   = regexp.MustCompile(`\n+`)
	pauseMarker = regexp.MustCompile(`\.{3,}|…|\s[-–—]{1,2}\s|\[(?:pause|silence|music|applause|laughter)\]`)
	commaBreak  = regexp.MustCompile(`,\s`)
)

// segment is a candidate transcript region for similarity scoring
type segment struct {
	span    model.Span
	text    string              // Canonical comparison string
	content map[string]struct{} // Content vocabulary
}

// splitter cuts text into spans; keep reports whether the delimiter match
// belongs to the preceding span
type splitter struct {
	pattern *regexp.Regexp
	keep    bool
}

var splitters = []splitter{
	{pattern: sentenceEnd, keep: true},
	{pattern: lineBreak},
	{pattern: pauseMarker},
}

// buildSegments runs every splitter independently over the transcript, then
// comma-splits long segments. Duplicate spans are dropped, first kept.
func buildSegments(transcript string, commaSplitChars int) []segment {
	var spans []model.Span
	for _, s := range splitters {
		spans = append(spans, split(transcript, 0, len(transcript), s)...)
	}

	long := spans
	for _, sp := range long {
		if utf8.RuneCountInString(transcript[sp.Start:sp.End]) > commaSplitChars {
			spans = append(spans, split(transcript, sp.Start, sp.End, splitter{pattern: commaBreak})...)
		}
	}

	seen := make(map[model.Span]struct{}, len(spans))
	segments := make([]segment, 0, len(spans))
	for _, sp := range spans {
		if _, dup := seen[sp]; dup {
			continue
		}
		seen[sp] = struct{}{}

		tokens := tokenize(transcript[sp.Start:sp.End], sp.Start)
		segments = append(segments, segment{
			span:    sp,
			text:    joinWords(tokens),
			content: wordSet(contentWords(tokens)),
		})
	}
	return segments
}

// split cuts text[start:end] at every delimiter match and trims each piece
func split(text string, start, end int, s splitter) []model.Span {
	var spans []model.Span
	from := start
	for _, loc := range s.pattern.FindAllStringIndex(text[start:end], -1) {
		cut, next := start+loc[0], start+loc[1]
		if s.keep {
			cut = next
		}
		if sp, ok := trimSpan(text, from, cut); ok {
			spans = append(spans, sp)
		}
		from = next
	}
	if sp, ok := trimSpan(text, from, end); ok {
		spans = append(spans, sp)
	}
	return spans
}

// trimSpan strips surrounding whitespace; ok is false when nothing
// alphanumeric remains
func trimSpan(text string, start, end int) (model.Span, bool) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}

	for _, r := range text[start:end] {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return model.Span{Start: start, End: end}, true
		}
	}
	return model.Span{}, false
}

// sentenceAround widens a span to the sentence that contains it. Sentence
// punctuation only counts when followed by whitespace; newlines always count.
func sentenceAround(text string, sp model.Span) model.Span {
	start := 0
	for j := sp.Start - 1; j >= 0; j-- {
		c := text[j]
		if c == '\n' {
			start = j + 1
			break
		}
		if (c == '.' || c == '!' || c == '?') && j+1 < sp.Start && isASCIISpace(text[j+1]) {
			start = j + 1
			break
		}
	}

	end := len(text)
	for j := sp.End; j < len(text); j++ {
		c := text[j]
		if c == '\n' {
			end = j
			break
		}
		if (c == '.' || c == '!' || c == '?') && (j+1 == len(text) || isASCIISpace(text[j+1])) {
			end = j + 1
			break
		}
	}

	if trimmed, ok := trimSpan(text, start, end); ok {
		return trimmed
	}
	return sp
}

func isASCIISpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
