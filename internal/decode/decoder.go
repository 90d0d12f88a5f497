// Package decode recovers a claim record from the raw, frequently malformed,
// JSON-ish text produced by a fact-check service.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/claimalign/internal/annotate"
	"github.com/ppiankov/claimalign/internal/model"
)

// Pass identifies one repair step of the decoder
type Pass int

const (
	PassNone            Pass = iota // No pass succeeded
	PassDirect                      // Raw text decoded as-is
	PassExtract                     // Code fences stripped, outermost braces kept
	PassNormalize                   // Typographic punctuation and trailing commas fixed
	PassSeparators                  // Missing , and : inserted structurally
	PassTargeted                    // Separator inserted at the reported error offset
	PassStripAnnotation             // Inline annotated transcript removed, containers closed
)

var passNames = map[Pass]string{
	PassNone:            "none",
	PassDirect:          "direct",
	PassExtract:         "extract",
	PassNormalize:       "normalize",
	PassSeparators:      "separators",
	PassTargeted:        "targeted",
	PassStripAnnotation: "strip_annotation",
}

func (p Pass) String() string {
	if name, ok := passNames[p]; ok {
		return name
	}
	return fmt.Sprintf("pass(%d)", int(p))
}

var (
	errNotObject    = errors.New("payload is not a JSON object")
	errNoTarget     = errors.New("no separator error to target")
	errNothingToFix = errors.New("no annotation field or open container to repair")
)

// Failure records why one pass did not produce an object
type Failure struct {
	Pass Pass
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Pass, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Result is the decoder outcome. Exactly one of Claims and Raw is set.
type Result struct {
	Claims             *model.ClaimSet
	Pass               Pass      // Pass that produced Claims
	Failures           []Failure // Passes tried before success, in order
	Raw                string    // Original text when every pass failed
	Unstructured       bool
	AnnotationStripped bool
}

// Info summarizes the result for reports
func (r Result) Info() model.DecodeInfo {
	info := model.DecodeInfo{
		Pass:               r.Pass.String(),
		Unstructured:       r.Unstructured,
		AnnotationStripped: r.AnnotationStripped,
	}
	for _, f := range r.Failures {
		info.Failures = append(info.Failures, f.Error())
	}
	if r.Claims != nil {
		info.AnnotationRejected = r.Claims.AnnotationRejected
	}
	return info
}

// Config tunes the decoder
type Config struct {
	MinAnnotationRatio float64
}

// DefaultConfig returns the decoder defaults
func DefaultConfig() Config {
	return Config{MinAnnotationRatio: 0.80}
}

// ConfigFromModel converts the file/env configuration section
func ConfigFromModel(c model.DecoderConfig) Config {
	return Config{MinAnnotationRatio: c.MinAnnotationRatio}
}

// Decoder runs the repair passes. It holds no mutable state.
type Decoder struct {
	cfg Config
}

// NewDecoder creates a decoder, replacing out-of-range settings with defaults
func NewDecoder(cfg Config) *Decoder {
	if cfg.MinAnnotationRatio <= 0 || cfg.MinAnnotationRatio > 1 {
		cfg.MinAnnotationRatio = DefaultConfig().MinAnnotationRatio
	}
	return &Decoder{cfg: cfg}
}

// Decode turns raw service output into a claim set. transcript, when not
// empty, is used to validate an inline annotated transcript.
func (d *Decoder) Decode(raw, transcript string) Result {
	var res Result

	attempt := func(p Pass, text string) error {
		obj, err := parseObject(text)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Pass: p, Err: err})
			return err
		}
		res.Pass = p
		res.Claims = d.claimSet(obj, transcript, res.AnnotationStripped)
		return nil
	}

	text := raw
	if attempt(PassDirect, text) == nil {
		return res
	}

	text = extractObject(text)
	if attempt(PassExtract, text) == nil {
		return res
	}

	normalized := normalizePunctuation(text)
	if attempt(PassNormalize, normalized) == nil {
		return res
	}

	text = insertSeparators(normalized)
	lastErr := attempt(PassSeparators, text)
	if lastErr == nil {
		return res
	}

	if fixed, ok := targetedFix(text, lastErr); ok {
		if attempt(PassTargeted, fixed) == nil {
			return res
		}
	} else {
		res.Failures = append(res.Failures, Failure{Pass: PassTargeted, Err: errNoTarget})
	}

	// Separator insertion misreads strings with stray quotes, so the
	// annotation is stripped from the normalized text
	stripped, found := stripAnnotationField(normalized)
	repaired := balanceClosers(stripped)
	if !found && repaired == normalized {
		res.Failures = append(res.Failures, Failure{Pass: PassStripAnnotation, Err: errNothingToFix})
	} else {
		res.AnnotationStripped = found
		repaired = insertSeparators(normalizePunctuation(repaired))
		if attempt(PassStripAnnotation, repaired) == nil {
			return res
		}
		res.AnnotationStripped = false
	}

	res.Pass = PassNone
	res.Claims = nil
	res.Raw = raw
	res.Unstructured = true
	return res
}

// object is a decoded JSON object with its keys in payload order
type object struct {
	keys   []string
	fields map[string]json.RawMessage
}

// parseObject succeeds only for a JSON object
func parseObject(text string) (object, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return object{}, err
	}
	if fields == nil {
		return object{}, errNotObject
	}
	return object{keys: keyOrder(text, fields), fields: fields}, nil
}

// keyOrder lists the top-level keys of an already validated object in the
// order they first appear. Falls back to sorted keys if the walk disagrees
// with the decoded map.
func keyOrder(text string, fields map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))

	dec := json.NewDecoder(strings.NewReader(text))
	if _, err := dec.Token(); err == nil {
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				break
			}
			key, _ := tok.(string)
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				break
			}
			if _, ok := fields[key]; ok && !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}

	if len(keys) == len(fields) {
		return keys
	}
	keys = keys[:0]
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// claimSet builds the record and validates the inline annotation
func (d *Decoder) claimSet(obj object, transcript string, stripped bool) *model.ClaimSet {
	set, annotation := buildClaimSet(obj)

	switch {
	case stripped || strings.TrimSpace(annotation) == "":
		set.NeedsAnnotation = true
	case d.truncated(annotation, transcript):
		set.AnnotationRejected = true
		set.NeedsAnnotation = true
	default:
		set.AnnotatedTranscript = annotation
	}
	return set
}

// truncated reports whether the de-tagged annotation is implausibly short
func (d *Decoder) truncated(annotation, transcript string) bool {
	want := utf8.RuneCountInString(strings.TrimSpace(transcript))
	if want == 0 {
		return false
	}
	got := utf8.RuneCountInString(strings.TrimSpace(annotate.StripMarkers(annotation)))
	return float64(got)/float64(want) < d.cfg.MinAnnotationRatio
}
