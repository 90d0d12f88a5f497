package align

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/claimalign/internal/model"
)

// transcriptIndex is everything the strategies need about one transcript,
// computed once per Locate call
type transcriptIndex struct {
	transcript string
	tokens     []token
	segments   []segment
	windows    []segment
	content    []int            // Token positions of content words
	positions  map[string][]int // Content word -> offsets into content
}

// query is the normalised form of one claim
type query struct {
	text    string   // Canonical comparison string
	content []string // Content words in order
}

func newTranscriptIndex(transcript string, cfg Config) *transcriptIndex {
	idx := &transcriptIndex{
		transcript: transcript,
		tokens:     tokenize(transcript, 0),
		segments:   buildSegments(transcript, cfg.CommaSplitChars),
		positions:  make(map[string][]int),
	}

	for i, t := range idx.tokens {
		if isContentWord(t.word) {
			idx.positions[t.word] = append(idx.positions[t.word], len(idx.content))
			idx.content = append(idx.content, i)
		}
	}

	idx.windows = buildWindows(idx.tokens, cfg.WindowWords, cfg.WindowOverlap)
	return idx
}

// buildWindows covers the tokens with overlapping fixed-size windows; a
// short transcript is a single window
func buildWindows(tokens []token, size, overlap int) []segment {
	if len(tokens) == 0 {
		return nil
	}
	step := max(size-overlap, 1)

	var windows []segment
	for start := 0; ; start += step {
		end := min(start+size, len(tokens))
		w := tokens[start:end]
		windows = append(windows, segment{
			span: model.Span{Start: w[0].span.Start, End: w[len(w)-1].span.End},
			text: joinWords(w),
		})
		if end == len(tokens) {
			break
		}
	}
	return windows
}

const (
	claimQuotes       = "\"'“”‘’«» \t\n"
	claimTrailingPunc = ".!?,;:…"
)

var apostrophes = regexp.MustCompile(`['’‘]`)

// exactPattern builds a case-insensitive pattern matching the claim words
// separated by any whitespace
func exactPattern(text string) (*regexp.Regexp, error) {
	text = strings.Trim(text, claimQuotes)
	text = strings.TrimRight(text, claimTrailingPunc)
	text = strings.Trim(text, claimQuotes)

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, errEmptyClaim
	}
	for i, f := range fields {
		fields[i] = apostrophes.ReplaceAllString(regexp.QuoteMeta(f), `['’‘]`)
	}
	return regexp.Compile(`(?i)` + strings.Join(fields, `\s+`))
}

// exactMatch prefers the first occurrence not already owned by another claim
func exactMatch(transcript, text string, occupied []model.Span) (candidate, bool) {
	re, err := exactPattern(text)
	if err != nil {
		return candidate{}, false
	}

	locs := re.FindAllStringIndex(transcript, -1)
	if len(locs) == 0 {
		return candidate{}, false
	}

	pick := locs[0]
	for _, loc := range locs {
		if !overlapsAny(model.Span{Start: loc[0], End: loc[1]}, occupied) {
			pick = loc
			break
		}
	}

	return candidate{
		span:     model.Span{Start: pick[0], End: pick[1]},
		strategy: model.StrategyExact,
		score:    1,
	}, true
}

func overlapsAny(s model.Span, spans []model.Span) bool {
	for _, o := range spans {
		if s.Overlaps(o) {
			return true
		}
	}
	return false
}

// bestRatio scores every candidate and keeps the first maximum
func bestRatio(candidates []segment, text string, threshold float64) (segment, float64, bool) {
	claimLen := utf8.RuneCountInString(text)

	var best segment
	bestScore := -1.0
	for _, c := range candidates {
		if c.text == "" {
			continue
		}
		if bound := ratioBound(claimLen, utf8.RuneCountInString(c.text)); bound < threshold || bound <= bestScore {
			continue
		}
		if score := ratio(text, c.text); score > bestScore {
			best, bestScore = c, score
		}
	}

	return best, bestScore, bestScore >= threshold
}

func (l *Locator) fuzzySegment(idx *transcriptIndex, q query) (candidate, bool) {
	seg, score, ok := bestRatio(idx.segments, q.text, l.cfg.FuzzyThreshold)
	if !ok {
		return candidate{}, false
	}
	return candidate{span: seg.span, strategy: model.StrategyFuzzySegment, score: score}, true
}

func (l *Locator) slidingWindow(idx *transcriptIndex, q query) (candidate, bool) {
	win, score, ok := bestRatio(idx.windows, q.text, l.cfg.WindowThreshold)
	if !ok {
		return candidate{}, false
	}
	return candidate{span: win.span, strategy: model.StrategySlidingWindow, score: score}, true
}

// keyPhrase looks for runs of consecutive claim content words in the
// transcript's content-word stream, longest runs first, and widens the
// first hit to its sentence
func (l *Locator) keyPhrase(idx *transcriptIndex, q query) (candidate, bool) {
	words := q.content
	if len(words) < l.cfg.MinPhraseWords {
		return candidate{}, false
	}

	for n := min(l.cfg.MaxPhraseWords, len(words)); n >= l.cfg.MinPhraseWords; n-- {
		for off := 0; off+n <= len(words); off++ {
			at, ok := idx.findPhrase(words[off : off+n])
			if !ok {
				continue
			}

			first := idx.tokens[idx.content[at]]
			last := idx.tokens[idx.content[at+n-1]]
			span := sentenceAround(idx.transcript, model.Span{Start: first.span.Start, End: last.span.End})

			return candidate{
				span:     span,
				strategy: model.StrategyKeyPhrase,
				score:    float64(n) / float64(len(words)),
			}, true
		}
	}
	return candidate{}, false
}

// findPhrase returns the earliest content-stream offset where phrase occurs
func (idx *transcriptIndex) findPhrase(phrase []string) (int, bool) {
	for _, at := range idx.positions[phrase[0]] {
		if at+len(phrase) > len(idx.content) {
			break
		}
		hit := true
		for k := 1; k < len(phrase); k++ {
			if idx.tokens[idx.content[at+k]].word != phrase[k] {
				hit = false
				break
			}
		}
		if hit {
			return at, true
		}
	}
	return 0, false
}

// wordOverlap scores segments by how much of the claim's content
// vocabulary they contain
func (l *Locator) wordOverlap(idx *transcriptIndex, q query) (candidate, bool) {
	claimSet := wordSet(q.content)
	if len(claimSet) < 2 {
		return candidate{}, false
	}

	var best segment
	bestScore := -1.0
	for _, seg := range idx.segments {
		shared := 0
		for w := range claimSet {
			if _, ok := seg.content[w]; ok {
				shared++
			}
		}
		if shared < 2 {
			continue
		}

		union := len(claimSet) + len(seg.content) - shared
		coverage := float64(shared) / float64(len(claimSet))
		jaccard := float64(shared) / float64(union)
		if score := 0.8*coverage + 0.2*jaccard; score > bestScore {
			best, bestScore = seg, score
		}
	}

	if bestScore < l.cfg.OverlapThreshold {
		return candidate{}, false
	}
	return candidate{span: best.span, strategy: model.StrategyWordOverlap, score: bestScore}, true
}
