package align

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ppiankov/claimalign/internal/model"
)

// wordPattern keeps "4.1%", "700,000", "don't" and "covid-19" as one token
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’.,%-][\p{L}\p{N}]+)*%?`)

// token is one transcript word with its byte span
type token struct {
	span model.Span
	word string // case-folded, curly apostrophes folded to '
}

func foldWord(w string) string {
	return strings.ReplaceAll(cases.Fold().String(w), "’", "'")
}

// tokenize splits text into folded word tokens; offsets are relative to
// text plus base
func tokenize(text string, base int) []token {
	locs := wordPattern.FindAllStringIndex(text, -1)
	tokens := make([]token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, token{
			span: model.Span{Start: base + loc[0], End: base + loc[1]},
			word: foldWord(text[loc[0]:loc[1]]),
		})
	}
	return tokens
}

// joinWords renders tokens as the canonical comparison string
func joinWords(tokens []token) string {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.word
	}
	return strings.Join(words, " ")
}

// contentWords returns the folded content words of tokens in order
func contentWords(tokens []token) []string {
	var out []string
	for _, t := range tokens {
		if isContentWord(t.word) {
			out = append(out, t.word)
		}
	}
	return out
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
