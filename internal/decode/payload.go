package decode

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ppiankov/claimalign/internal/model"
)

// buildClaimSet extracts the record from a decoded object. Keys are handled
// in payload order, so claims of one category keep the order they were
// written in even when split across alias keys. Unknown keys and malformed
// entries are skipped. The inline annotation is returned separately so the
// caller can validate it.
func buildClaimSet(obj object) (*model.ClaimSet, string) {
	set := &model.ClaimSet{Claims: []model.Claim{}}
	var annotation string

	for _, key := range obj.keys {
		raw := obj.fields[key]

		switch NormalizeKey(key) {
		case "fact_score", "factual_score", "factuality_score":
			set.FactScore = parseScore(raw)
		case "overall_verdict", "verdict":
			set.OverallVerdict = scalarString(raw)
		case "summary":
			set.Summary = scalarString(raw)
		case "red_flags":
			set.RedFlags = parseStrings(raw)
		case "full_transcript_with_highlights", "highlighted_transcript", "annotated_transcript", "transcript_with_highlights":
			annotation = scalarString(raw)
		case "claims", "all_claims":
			for _, c := range parseGenericClaims(raw) {
				set.Add(c)
			}
		default:
			category, ok := CanonicalCategory(key)
			if !ok {
				continue
			}
			for _, c := range parseClaims(raw, category) {
				set.Add(c)
			}
		}
	}

	return set, annotation
}

// parseClaims reads an array of string or object entries of one category
func parseClaims(raw json.RawMessage, category model.Category) []model.Claim {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	var claims []model.Claim
	for _, entry := range entries {
		if c, ok := parseClaim(entry, category); ok {
			claims = append(claims, c)
		}
	}
	return claims
}

// parseGenericClaims reads a mixed array whose object entries name their
// own category
func parseGenericClaims(raw json.RawMessage) []model.Claim {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	var claims []model.Claim
	for _, entry := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			continue
		}
		category, ok := CanonicalCategory(firstString(fields, "category", "verdict", "type", "status", "label"))
		if !ok {
			continue
		}
		if c, ok := parseClaim(entry, category); ok {
			claims = append(claims, c)
		}
	}
	return claims
}

func parseClaim(raw json.RawMessage, category model.Category) (model.Claim, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		text = strings.TrimSpace(text)
		return model.Claim{Category: category, Text: text}, text != ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return model.Claim{}, false
	}

	c := model.Claim{
		Category:    category,
		Text:        strings.TrimSpace(firstString(fields, "claim", "text", "statement", "quote")),
		Timestamp:   firstString(fields, "timestamp", "time"),
		Explanation: firstString(fields, "explanation", "reasoning", "analysis"),
		Confidence:  parseConfidence(fields["confidence"]),
	}
	if src, ok := fields["sources"]; ok {
		c.Sources = parseSources(src)
	} else if src, ok := fields["source"]; ok {
		c.Sources = parseSources(src)
	}

	return c, c.Text != ""
}

// parseSources accepts a string, an object with url/title/name, or an
// array of either
func parseSources(raw json.RawMessage) []string {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		entries = []json.RawMessage{raw}
	}

	var sources []string
	for _, entry := range entries {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				sources = append(sources, s)
			}
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil {
			continue
		}
		if s = strings.TrimSpace(firstString(fields, "url", "title", "name")); s != "" {
			sources = append(sources, s)
		}
	}
	return sources
}

// parseStrings reads an array of strings (or objects carrying text)
func parseStrings(raw json.RawMessage) []string {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		if s := scalarString(raw); s != "" {
			return []string{s}
		}
		return nil
	}

	var out []string
	for _, entry := range entries {
		s := scalarString(entry)
		if s == "" {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(entry, &fields); err == nil {
				s = firstString(fields, "text", "flag", "description")
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// firstString returns the first non-empty scalar among keys
func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if raw, ok := fields[k]; ok {
			if s := scalarString(raw); s != "" {
				return s
			}
		}
	}
	return ""
}

// scalarString renders a JSON string, number or boolean as text
func scalarString(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// parseScore accepts a number or a numeric string such as "7" or "72%"
func parseScore(raw json.RawMessage) *float64 {
	s := strings.TrimSuffix(strings.TrimSpace(scalarString(raw)), "%")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseConfidence maps words or 0-1 / 0-100 numbers onto high/medium/low
func parseConfidence(raw json.RawMessage) model.Confidence {
	if raw == nil {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(scalarString(raw)))

	switch s {
	case "high", "very high", "strong":
		return model.ConfidenceHigh
	case "medium", "moderate", "mid":
		return model.ConfidenceMedium
	case "low", "very low", "weak":
		return model.ConfidenceLow
	}

	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil || f < 0 {
		return ""
	}
	if f > 1 {
		f /= 100
	}
	switch {
	case f >= 0.8:
		return model.ConfidenceHigh
	case f >= 0.5:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
