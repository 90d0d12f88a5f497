package decode

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/claimalign/internal/model"
)

const wellFormed = `{
  "fact_score": 7.5,
  "overall_verdict": "Mostly accurate",
  "summary": "The speaker's main points hold up.",
  "red_flags": ["Cherry-picked statistic"],
  "false_claims": [
    {"claim": "The moon is made of cheese", "timestamp": "01:20", "explanation": "It is rock.", "sources": ["https://nasa.gov"], "confidence": "high"}
  ],
  "verified_claims": [
    {"claim": "Water boils at 100 degrees at sea level", "timestamp": "00:42", "confidence": 0.9},
    "The Earth orbits the Sun"
  ],
  "opinion_claims": [
    {"text": "This is the best city in the world", "reasoning": "Subjective ranking."}
  ]
}`

func TestDecoder_Decode_WellFormed(t *testing.T) {
	d := NewDecoder(DefaultConfig())
	res := d.Decode(wellFormed, "")

	if res.Pass != PassDirect {
		t.Fatalf("Expected direct pass, got %s (failures: %v)", res.Pass, res.Failures)
	}
	if res.Unstructured {
		t.Fatal("Expected structured result")
	}
	if len(res.Failures) != 0 {
		t.Errorf("Expected no failures, got %v", res.Failures)
	}

	set := res.Claims
	if set.FactScore == nil || *set.FactScore != 7.5 {
		t.Errorf("Expected fact score 7.5, got %v", set.FactScore)
	}
	if set.OverallVerdict != "Mostly accurate" {
		t.Errorf("Expected verdict, got %q", set.OverallVerdict)
	}
	if len(set.RedFlags) != 1 {
		t.Errorf("Expected 1 red flag, got %d", len(set.RedFlags))
	}

	if set.Len() != 4 {
		t.Fatalf("Expected 4 claims, got %d", set.Len())
	}

	// Category order regardless of key order in the payload
	wantOrder := []model.Category{
		model.CategoryVerified,
		model.CategoryVerified,
		model.CategoryOpinion,
		model.CategoryFalse,
	}
	for i, c := range set.Claims {
		if c.Category != wantOrder[i] {
			t.Errorf("Claim %d: expected category %s, got %s", i, wantOrder[i], c.Category)
		}
	}

	// Payload order within a category
	if set.Claims[0].Text != "Water boils at 100 degrees at sea level" {
		t.Errorf("Expected first verified claim first, got %q", set.Claims[0].Text)
	}
	if set.Claims[0].Confidence != model.ConfidenceHigh {
		t.Errorf("Expected numeric confidence 0.9 to map to high, got %q", set.Claims[0].Confidence)
	}
	if set.Claims[1].Text != "The Earth orbits the Sun" {
		t.Errorf("Expected string claim to be accepted, got %q", set.Claims[1].Text)
	}
	if set.Claims[2].Explanation != "Subjective ranking." {
		t.Errorf("Expected reasoning as explanation, got %q", set.Claims[2].Explanation)
	}
	if got := set.Claims[3].Sources; len(got) != 1 || got[0] != "https://nasa.gov" {
		t.Errorf("Expected one source, got %v", got)
	}

	if !set.NeedsAnnotation {
		t.Error("Expected NeedsAnnotation without an inline annotation")
	}
}

func TestDecoder_Decode_TrailingCommaWithNumericClaims(t *testing.T) {
	d := NewDecoder(DefaultConfig())
	res := d.Decode(`{"fact_score": 7, "claims": [1,2],}`, "")

	if res.Pass != PassNormalize {
		t.Fatalf("Expected normalize pass, got %s (failures: %v)", res.Pass, res.Failures)
	}
	if res.Claims.FactScore == nil || *res.Claims.FactScore != 7 {
		t.Errorf("Expected fact score 7, got %v", res.Claims.FactScore)
	}
	if res.Claims.Len() != 0 {
		t.Errorf("Expected numeric entries to be skipped, got %d claims", res.Claims.Len())
	}
	if len(res.Failures) != 2 {
		t.Errorf("Expected direct and extract failures, got %v", res.Failures)
	}
}

func TestDecoder_Decode_CodeFence(t *testing.T) {
	raw := "Here is the analysis you asked for:\n```json\n{\"summary\": \"ok\", \"verified_claims\": [\"A\"]}\n```\nLet me know!"

	res := NewDecoder(DefaultConfig()).Decode(raw, "")
	if res.Pass != PassExtract {
		t.Fatalf("Expected extract pass, got %s", res.Pass)
	}
	if res.Claims.Summary != "ok" {
		t.Errorf("Expected summary ok, got %q", res.Claims.Summary)
	}
}

func TestDecoder_Decode_MissingClosingBrace(t *testing.T) {
	// Extraction keeps everything after the first brace; nothing closes it
	res := NewDecoder(DefaultConfig()).Decode(`Result: {"summary": "cut", "verified_claims": ["A"]`, "")

	if res.Unstructured {
		t.Fatalf("Expected balanced payload to decode, failures: %v", res.Failures)
	}
	if res.Pass != PassStripAnnotation {
		t.Errorf("Expected strip_annotation pass, got %s", res.Pass)
	}
	if res.AnnotationStripped {
		t.Error("Expected no annotation field to be reported stripped")
	}
	if res.Claims.Len() != 1 {
		t.Errorf("Expected 1 claim, got %d", res.Claims.Len())
	}
}

func TestDecoder_Decode_TypographicQuotes(t *testing.T) {
	raw := "{“summary”: “It’s fine”, “verified_claims”: [“The sky is blue”], “opinion_claims”: [“He said “maybe” twice”]}"

	res := NewDecoder(DefaultConfig()).Decode(raw, "")
	if res.Pass != PassNormalize {
		t.Fatalf("Expected normalize pass, got %s (failures: %v)", res.Pass, res.Failures)
	}
	if res.Claims.Summary != "It's fine" {
		t.Errorf("Expected folded apostrophe, got %q", res.Claims.Summary)
	}

	opinions := res.Claims.ByCategory(model.CategoryOpinion)
	if len(opinions) != 1 || opinions[0].Text != "He said “maybe” twice" {
		t.Errorf("Expected inner curly quotes preserved, got %+v", opinions)
	}
}

func TestDecoder_Decode_MissingSeparators(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing comma between members", `{"summary": "x" "verified_claims": ["a", "b"]}`},
		{"missing comma between elements", `{"summary": "x", "verified_claims": ["a" "b"]}`},
		{"missing comma after number", `{"fact_score": 3 "summary": "x", "verified_claims": ["a", "b"]}`},
		{"missing comma between objects", `{"summary": "x", "verified_claims": [{"claim": "a"} {"claim": "b"}]}`},
		{"missing colon", `{"summary" "x", "verified_claims": ["a", "b"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewDecoder(DefaultConfig()).Decode(tt.raw, "")
			if res.Pass != PassSeparators {
				t.Fatalf("Expected separators pass, got %s (failures: %v)", res.Pass, res.Failures)
			}
			if got := len(res.Claims.ByCategory(model.CategoryVerified)); got != 2 {
				t.Errorf("Expected 2 verified claims, got %d", got)
			}
		})
	}
}

func TestTargetedFix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"member", `{"a": 1 "b": 2}`, `{"a": 1 ,"b": 2}`},
		{"element", `{"a": [1 2]}`, `{"a": [1 ,2]}`},
		{"colon", `{"a" 1}`, `{"a" :1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseObject(tt.in)
			if err == nil {
				t.Fatal("Expected a syntax error")
			}
			got, ok := targetedFix(tt.in, err)
			if !ok {
				t.Fatalf("Expected a fix for %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if _, err := parseObject(got); err != nil {
				t.Errorf("Expected fixed text to decode, got %v", err)
			}
		})
	}

	if _, ok := targetedFix(`{"a": }`, &json.UnmarshalTypeError{}); ok {
		t.Error("Expected no fix for a non-syntax error")
	}
}

func TestDecoder_Decode_TruncatedAnnotation(t *testing.T) {
	raw := `{"fact_score": 5, "verified_claims": ["Water is wet"], "full_transcript_with_highlights": "The sky is blue. [VERIFIED]Water is`

	res := NewDecoder(DefaultConfig()).Decode(raw, "The sky is blue. Water is wet.")

	if res.Pass != PassStripAnnotation {
		t.Fatalf("Expected strip_annotation pass, got %s (failures: %v)", res.Pass, res.Failures)
	}
	if !res.AnnotationStripped {
		t.Error("Expected AnnotationStripped")
	}
	if !res.Claims.NeedsAnnotation {
		t.Error("Expected NeedsAnnotation after stripping")
	}
	if res.Claims.AnnotatedTranscript != "" {
		t.Errorf("Expected no annotation, got %q", res.Claims.AnnotatedTranscript)
	}
	if res.Claims.Len() != 1 {
		t.Errorf("Expected 1 claim, got %d", res.Claims.Len())
	}
}

func TestDecoder_Decode_AnnotationWithUnescapedQuotes(t *testing.T) {
	raw := `{"annotated_transcript": "He said "no" and [FALSE]left[/FALSE].", "false_claims": ["left"], "summary": "s"}`

	res := NewDecoder(DefaultConfig()).Decode(raw, "")
	if res.Unstructured {
		t.Fatalf("Expected structured result, failures: %v", res.Failures)
	}
	if !res.AnnotationStripped {
		t.Error("Expected the broken annotation to be stripped")
	}
	if res.Claims.Summary != "s" || res.Claims.Len() != 1 {
		t.Errorf("Expected remaining members intact, got %+v", res.Claims)
	}
}

func TestDecoder_Decode_TruncationGuard(t *testing.T) {
	transcript := "The sky is blue. Water is wet. Fire is hot and bright today."

	tests := []struct {
		name       string
		annotation string
		rejected   bool
	}{
		{"full length", "The sky is blue. [VERIFIED]Water is wet[/VERIFIED]. Fire is hot and bright today.", false},
		{"truncated", "The sky is blue. [VERIFIED]Water", true},
		{"slightly short", "The sky is blue. Water is wet. Fire is hot and bright", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, _ := json.Marshal(map[string]interface{}{
				"verified_claims":                 []string{"Water is wet"},
				"full_transcript_with_highlights": tt.annotation,
			})

			res := NewDecoder(DefaultConfig()).Decode(string(payload), transcript)
			if res.Pass != PassDirect {
				t.Fatalf("Expected direct pass, got %s", res.Pass)
			}

			set := res.Claims
			if set.AnnotationRejected != tt.rejected {
				t.Errorf("Expected AnnotationRejected=%v, got %v", tt.rejected, set.AnnotationRejected)
			}
			if set.NeedsAnnotation != tt.rejected {
				t.Errorf("Expected NeedsAnnotation=%v, got %v", tt.rejected, set.NeedsAnnotation)
			}
			if tt.rejected && set.AnnotatedTranscript != "" {
				t.Error("Expected rejected annotation to be cleared")
			}
			if !tt.rejected && set.AnnotatedTranscript != tt.annotation {
				t.Errorf("Expected annotation kept, got %q", set.AnnotatedTranscript)
			}
		})
	}
}

func TestDecoder_Decode_Unstructured(t *testing.T) {
	for _, raw := range []string{
		"I'm sorry, I can't analyze this video.",
		"[1, 2, 3]",
		"null",
		"",
	} {
		res := NewDecoder(DefaultConfig()).Decode(raw, "")
		if !res.Unstructured {
			t.Errorf("Expected unstructured result for %q", raw)
			continue
		}
		if res.Raw != raw {
			t.Errorf("Expected raw text preserved, got %q", res.Raw)
		}
		if res.Claims != nil {
			t.Errorf("Expected no claims for %q", raw)
		}
		if res.Pass != PassNone {
			t.Errorf("Expected pass none, got %s", res.Pass)
		}
		if len(res.Failures) == 0 || res.Failures[len(res.Failures)-1].Pass != PassStripAnnotation {
			t.Errorf("Expected every pass to be recorded, got %v", res.Failures)
		}
	}
}

func TestDecoder_Decode_CategoryNormalization(t *testing.T) {
	raw := `{
		"Opinion-Based Claims": ["a"],
		"UNVERIFIED_CLAIMS": ["b"],
		"misleading claims": ["c"],
		"Facts": ["d"],
		"random_notes": ["ignored"],
		"claims": [
			{"claim": "e", "verdict": "Accurate"},
			{"claim": "f", "category": "opinions"},
			{"claim": "g", "verdict": "unknown-bucket"},
			"h",
			null
		]
	}`

	res := NewDecoder(DefaultConfig()).Decode(raw, "")
	if res.Unstructured {
		t.Fatalf("Expected structured result, failures: %v", res.Failures)
	}

	want := map[string]model.Category{
		"a": model.CategoryOpinion,
		"b": model.CategoryUncertain,
		"c": model.CategoryFalse,
		"d": model.CategoryVerified,
		"e": model.CategoryVerified,
		"f": model.CategoryOpinion,
	}

	if res.Claims.Len() != len(want) {
		t.Fatalf("Expected %d claims, got %d: %+v", len(want), res.Claims.Len(), res.Claims.Claims)
	}
	for _, c := range res.Claims.Claims {
		if want[c.Text] != c.Category {
			t.Errorf("Claim %q: expected %s, got %s", c.Text, want[c.Text], c.Category)
		}
		if !c.Category.Valid() {
			t.Errorf("Claim %q has non-canonical category %q", c.Text, c.Category)
		}
	}
}

func TestDecoder_Decode_AliasKeysKeepPayloadOrder(t *testing.T) {
	// Both keys fold to opinion; sorted key order would put opinion_based_claims first
	raw := `{
		"opinion_claims": ["first", "second"],
		"verified_claims": ["checked"],
		"opinion_based_claims": ["third"],
		"opinion_claims": ["first", "second"]
	}`

	res := NewDecoder(DefaultConfig()).Decode(raw, "")
	if res.Pass != PassDirect {
		t.Fatalf("Expected direct pass, got %s (failures: %v)", res.Pass, res.Failures)
	}

	var got []string
	for _, c := range res.Claims.ByCategory(model.CategoryOpinion) {
		got = append(got, c.Text)
	}
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected opinion claims %v, got %v", want, got)
	}
	if res.Claims.Len() != 4 {
		t.Errorf("Expected duplicate key to count once, got %d claims", res.Claims.Len())
	}
}

func TestKeyOrder(t *testing.T) {
	text := `{"zeta": 1, "alpha": {"nested": [1, 2]}, "mid": "x", "alpha": 3}`
	obj, err := parseObject(text)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	if !reflect.DeepEqual(obj.keys, want) {
		t.Errorf("Expected keys %v, got %v", want, obj.keys)
	}
	if string(obj.fields["alpha"]) != "3" {
		t.Errorf("Expected last duplicate value to win, got %s", obj.fields["alpha"])
	}

	if _, err := parseObject(`["a"]`); err == nil {
		t.Error("Expected an array to be rejected")
	}
	if _, err := parseObject(`null`); err != errNotObject {
		t.Errorf("Expected errNotObject for null, got %v", err)
	}
}

func TestDecoder_Decode_ClaimShapes(t *testing.T) {
	raw := `{"uncertain_claims": [
		{"statement": "  Spaced  ", "time": 83, "sources": [{"url": "https://a.example"}, {"title": "Book"}, "https://b.example", 5], "confidence": "Moderate"},
		{"quote": "Q", "source": "https://c.example", "confidence": 35},
		{"explanation": "no text"},
		{"claim": ""},
		42
	]}`

	res := NewDecoder(DefaultConfig()).Decode(raw, "")
	claims := res.Claims.ByCategory(model.CategoryUncertain)
	if len(claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(claims))
	}

	first := claims[0]
	if first.Text != "Spaced" {
		t.Errorf("Expected trimmed text, got %q", first.Text)
	}
	if first.Timestamp != "83" {
		t.Errorf("Expected numeric timestamp as text, got %q", first.Timestamp)
	}
	if !reflect.DeepEqual(first.Sources, []string{"https://a.example", "Book", "https://b.example"}) {
		t.Errorf("Unexpected sources: %v", first.Sources)
	}
	if first.Confidence != model.ConfidenceMedium {
		t.Errorf("Expected medium confidence, got %q", first.Confidence)
	}

	second := claims[1]
	if !reflect.DeepEqual(second.Sources, []string{"https://c.example"}) {
		t.Errorf("Expected single source string, got %v", second.Sources)
	}
	if second.Confidence != model.ConfidenceLow {
		t.Errorf("Expected 35%% to map to low, got %q", second.Confidence)
	}
}

func TestDecoder_Decode_FactScoreString(t *testing.T) {
	res := NewDecoder(DefaultConfig()).Decode(`{"fact_score": " 82% "}`, "")
	if res.Claims.FactScore == nil || *res.Claims.FactScore != 82 {
		t.Errorf("Expected fact score 82, got %v", res.Claims.FactScore)
	}

	res = NewDecoder(DefaultConfig()).Decode(`{"fact_score": "high"}`, "")
	if res.Claims.FactScore != nil {
		t.Errorf("Expected non-numeric fact score to be dropped, got %v", *res.Claims.FactScore)
	}
}

// mangle reproduces typical service damage on an ASCII payload: curly
// delimiters, curly apostrophes and trailing commas
func mangle(payload string) string {
	var b strings.Builder
	open := true
	for _, r := range payload {
		switch r {
		case '"':
			if open {
				b.WriteRune('“')
			} else {
				b.WriteRune('”')
			}
			open = !open
		case '\'':
			b.WriteRune('’')
		case '}', ']':
			b.WriteString(",")
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestDecoder_Decode_RepairIsIdempotent(t *testing.T) {
	payloads := []map[string]interface{}{
		{
			"fact_score":      6,
			"summary":         "The host's claims, mostly, check out.",
			"verified_claims": []interface{}{"Paris is in France", map[string]interface{}{"claim": "It's 30 degrees", "timestamp": "0:12"}},
			"false_claims":    []interface{}{map[string]interface{}{"claim": "Bats are blind", "sources": []string{"https://example.org/bats"}}},
		},
		{
			"overall_verdict":  "Mixed",
			"opinion_claims":   []interface{}{"Jazz is better than rock"},
			"uncertain_claims": []interface{}{map[string]interface{}{"text": "Sales doubled: maybe", "confidence": "low"}},
		},
	}

	d := NewDecoder(DefaultConfig())

	for i, p := range payloads {
		for _, indent := range []bool{false, true} {
			var data []byte
			if indent {
				data, _ = json.MarshalIndent(p, "", "  ")
			} else {
				data, _ = json.Marshal(p)
			}
			original := string(data)

			clean := d.Decode(original, "")
			if clean.Pass != PassDirect {
				t.Fatalf("Payload %d: expected direct pass, got %s", i, clean.Pass)
			}

			again := d.Decode(original, "")
			if !reflect.DeepEqual(clean.Claims, again.Claims) {
				t.Errorf("Payload %d: decoding is not deterministic", i)
			}

			repaired := d.Decode(mangle(original), "")
			if repaired.Unstructured {
				t.Fatalf("Payload %d (indent=%v): mangled form did not decode: %v", i, indent, repaired.Failures)
			}
			if !reflect.DeepEqual(clean.Claims, repaired.Claims) {
				t.Errorf("Payload %d (indent=%v): expected %+v, got %+v", i, indent, clean.Claims, repaired.Claims)
			}
		}
	}
}

func TestNewDecoder_SanitizesRatio(t *testing.T) {
	for _, ratio := range []float64{0, -1, 1.5} {
		d := NewDecoder(Config{MinAnnotationRatio: ratio})
		if d.cfg.MinAnnotationRatio != 0.80 {
			t.Errorf("Expected ratio %v to fall back to 0.80, got %v", ratio, d.cfg.MinAnnotationRatio)
		}
	}
}

func TestResult_Info(t *testing.T) {
	res := NewDecoder(DefaultConfig()).Decode(`{"fact_score": 7, "claims": [1,2],}`, "")
	info := res.Info()

	if info.Pass != "normalize" {
		t.Errorf("Expected pass name normalize, got %q", info.Pass)
	}
	if len(info.Failures) != 2 || !strings.HasPrefix(info.Failures[0], "direct:") {
		t.Errorf("Expected failures prefixed by pass name, got %v", info.Failures)
	}
}
