package model

import "strings"

// Category is the verdict bucket a claim was placed in by the analysis service
type Category string

const (
	CategoryVerified  Category = "verified"  // Supported by evidence
	CategoryOpinion   Category = "opinion"   // Evaluative statement, not checkable
	CategoryUncertain Category = "uncertain" // Could not be verified either way
	CategoryFalse     Category = "false"     // Contradicted by evidence
)

// Categories lists the canonical categories in ClaimSet order
var Categories = []Category{
	CategoryVerified,
	CategoryOpinion,
	CategoryUncertain,
	CategoryFalse,
}

// Valid reports whether c is one of the four canonical categories
func (c Category) Valid() bool {
	switch c {
	case CategoryVerified, CategoryOpinion, CategoryUncertain, CategoryFalse:
		return true
	}
	return false
}

// Tag returns the upper-case marker name (e.g. "VERIFIED")
func (c Category) Tag() string {
	return strings.ToUpper(string(c))
}

// rank orders categories inside a ClaimSet
func (c Category) rank() int {
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return len(Categories)
}

// Confidence is the service's self-reported certainty for a claim
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Claim is a single statement extracted by the analysis service
type Claim struct {
	Category    Category   `json:"category" yaml:"category"`
	Text        string     `json:"text" yaml:"text"`
	Timestamp   string     `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Explanation string     `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Sources     []string   `json:"sources,omitempty" yaml:"sources,omitempty"`
	Confidence  Confidence `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// ClaimSet is the decoded analysis payload.
// Claims are kept ordered by category (verified, opinion, uncertain, false)
// and in payload order within a category.
type ClaimSet struct {
	FactScore      *float64 `json:"fact_score,omitempty" yaml:"fact_score,omitempty"`
	OverallVerdict string   `json:"overall_verdict,omitempty" yaml:"overall_verdict,omitempty"`
	Summary        string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	RedFlags       []string `json:"red_flags,omitempty" yaml:"red_flags,omitempty"`
	Claims         []Claim  `json:"claims" yaml:"claims"`

	// AnnotatedTranscript is the service's own marker-annotated transcript, if
	// it sent one and it survived validation
	AnnotatedTranscript string `json:"annotated_transcript,omitempty" yaml:"annotated_transcript,omitempty"`

	// AnnotationRejected is set when the service annotation was implausibly
	// short compared to the real transcript
	AnnotationRejected bool `json:"annotation_rejected,omitempty" yaml:"annotation_rejected,omitempty"`

	// NeedsAnnotation tells the caller to compute the annotation locally
	NeedsAnnotation bool `json:"needs_annotation" yaml:"needs_annotation"`
}

// Add inserts a claim keeping category order stable
func (s *ClaimSet) Add(c Claim) {
	i := len(s.Claims)
	for i > 0 && s.Claims[i-1].Category.rank() > c.Category.rank() {
		i--
	}
	s.Claims = append(s.Claims, Claim{})
	copy(s.Claims[i+1:], s.Claims[i:])
	s.Claims[i] = c
}

// ByCategory returns the claims of one category in payload order
func (s *ClaimSet) ByCategory(c Category) []Claim {
	var out []Claim
	for _, claim := range s.Claims {
		if claim.Category == c {
			out = append(out, claim)
		}
	}
	return out
}

// Counts returns the number of claims per category
func (s *ClaimSet) Counts() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}
	for _, claim := range s.Claims {
		counts[claim.Category]++
	}
	return counts
}

// Len returns the total number of claims
func (s *ClaimSet) Len() int {
	return len(s.Claims)
}
