package model

import "time"

// Report is the complete result of one claim alignment run
type Report struct {
	Subject     string    `json:"subject" yaml:"subject"`           // Human label for the transcript (file name, video title)
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"` // When the run finished

	Decode DecodeInfo `json:"decode" yaml:"decode"` // How the service output was recovered

	Claims *ClaimSet `json:"claims,omitempty" yaml:"claims,omitempty"` // nil when decoding failed
	Raw    string    `json:"raw,omitempty" yaml:"raw,omitempty"`       // Original service text, only kept when unstructured

	Matches             []MatchResult `json:"matches" yaml:"matches"`
	AnnotatedTranscript string        `json:"annotated_transcript,omitempty" yaml:"annotated_transcript,omitempty"`
	AnnotationSource    string        `json:"annotation_source,omitempty" yaml:"annotation_source,omitempty"` // "service" or "local"

	Score AlignmentScore `json:"score" yaml:"score"`
}

// DecodeInfo summarizes the repair decoder outcome
type DecodeInfo struct {
	Pass               string   `json:"pass" yaml:"pass"`                                                   // Pass that produced the record
	Unstructured       bool     `json:"unstructured" yaml:"unstructured"`                                   // Every pass failed
	Failures           []string `json:"failures,omitempty" yaml:"failures,omitempty"`                       // One entry per failed pass
	AnnotationRejected bool     `json:"annotation_rejected,omitempty" yaml:"annotation_rejected,omitempty"` // Truncated service annotation discarded
	AnnotationStripped bool     `json:"annotation_stripped,omitempty" yaml:"annotation_stripped,omitempty"` // Field removed to make the payload decodable
}

// AlignmentScore is the transparent breakdown of how well claims were anchored
type AlignmentScore struct {
	Index      int            `json:"index" yaml:"index"`           // Anchored claims as a 0-100 index
	Confidence string         `json:"confidence" yaml:"confidence"` // "low", "medium", "high"
	Matched    int            `json:"matched" yaml:"matched"`
	Unmatched  int            `json:"unmatched" yaml:"unmatched"`
	Superseded int            `json:"superseded" yaml:"superseded"`
	Strategies map[string]int `json:"strategies,omitempty" yaml:"strategies,omitempty"` // Matches per strategy
	Signals    []Signal       `json:"signals" yaml:"signals"`
}

// Signal represents a diagnostic signal with transparent data
type Signal struct {
	Type        SignalType             `json:"type" yaml:"type"`
	Severity    SignalSeverity         `json:"severity" yaml:"severity"`
	Description string                 `json:"description" yaml:"description"`
	Data        map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalAlignmentCoverage  SignalType = "alignment_coverage"  // Matched-to-claim ratio
	SignalStrategyMix        SignalType = "strategy_mix"        // Which strategies did the work
	SignalAlignmentMiss      SignalType = "alignment_miss"      // Claims no strategy could anchor
	SignalOverlapConflict    SignalType = "overlap_conflict"    // Claims skipped to avoid double tagging
	SignalTruncationDetected SignalType = "truncation_detected" // Service annotation too short
	SignalDecodeRepaired     SignalType = "decode_repaired"     // Payload needed repair passes
	SignalDecodeFailure      SignalType = "decode_failure"      // Payload could not be decoded
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// UnmatchedClaims returns the claims that ended up without a highlight
func (r *Report) UnmatchedClaims() []MatchResult {
	var out []MatchResult
	for _, m := range r.Matches {
		if !m.Matched() {
			out = append(out, m)
		}
	}
	return out
}
