package annotate

import (
	"regexp"
	"strings"

	"github.com/ppiankov/claimalign/internal/model"
)

// markerPattern matches every open or close marker token
var markerPattern = regexp.MustCompile(`\[(/?)(VERIFIED|OPINION|UNCERTAIN|FALSE)\]`)

// Markers returns the open and close marker for a category
func Markers(c model.Category) (openTag, closeTag string) {
	tag := c.Tag()
	return "[" + tag + "]", "[/" + tag + "]"
}

// StripMarkers removes every marker token from s
func StripMarkers(s string) string {
	return markerPattern.ReplaceAllString(s, "")
}

// ParseSpans recovers the tagged spans of an annotated text.
// Offsets refer to the de-tagged text, so for a compositor result r,
// ParseSpans(r.Text) reproduces r.Spans (with Index set to -1).
// Unbalanced or mismatched markers are dropped.
func ParseSpans(annotated string) []TaggedSpan {
	type open struct {
		category model.Category
		start    int
	}

	var (
		spans   []TaggedSpan
		stack   []open
		removed int
	)

	for _, loc := range markerPattern.FindAllStringSubmatchIndex(annotated, -1) {
		pos := loc[0] - removed
		removed += loc[1] - loc[0]

		closing := loc[3] > loc[2]
		category := model.Category(strings.ToLower(annotated[loc[4]:loc[5]]))

		if !closing {
			stack = append(stack, open{category: category, start: pos})
			continue
		}

		if len(stack) == 0 || stack[len(stack)-1].category != category {
			continue
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if pos > top.start {
			spans = append(spans, TaggedSpan{
				Span:     model.Span{Start: top.start, End: pos},
				Category: category,
				Index:    -1,
			})
		}
	}

	sortSpans(spans)
	return spans
}
