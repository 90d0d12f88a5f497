package score

import (
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/claimalign/internal/model"
)

// Scorer calculates the alignment index and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate scores how well the decoded claims were anchored on the
// transcript and explains the result with diagnostic signals
func (s *Scorer) Calculate(decode model.DecodeInfo, matches []model.MatchResult) model.AlignmentScore {
	var signals []model.Signal

	// Nothing to align without a claim record
	if decode.Unstructured {
		return model.AlignmentScore{
			Index:      0,
			Confidence: "low",
			Signals:    []model.Signal{s.decodeFailure(decode)},
		}
	}

	if decode.Pass != "" && decode.Pass != "direct" {
		signals = append(signals, s.decodeRepaired(decode))
	}

	if decode.AnnotationRejected {
		signals = append(signals, model.Signal{
			Type:        model.SignalTruncationDetected,
			Severity:    model.SeverityWarning,
			Description: "Service annotation was truncated and replaced by local annotation",
			Data:        map[string]interface{}{"annotation_rejected": true},
		})
	}

	matched, unmatched, superseded := tally(matches)

	// 1. Coverage (0-70 points)
	coverageScore, coverageSignal := s.calculateCoverage(len(matches), matched)
	signals = append(signals, coverageSignal)

	// 2. Match strength (0-30 points)
	strengthScore, strategies, mixSignal := s.calculateStrategyMix(matches)
	if mixSignal.Type != "" {
		signals = append(signals, mixSignal)
	}

	// 3. Misses and conflicts
	if missSignal := s.detectMisses(matches); missSignal.Type != "" {
		signals = append(signals, missSignal)
	}
	if conflictSignal := s.detectConflicts(matches); conflictSignal.Type != "" {
		signals = append(signals, conflictSignal)
	}

	totalScore := coverageScore + strengthScore
	if totalScore > 100 {
		totalScore = 100
	}

	return model.AlignmentScore{
		Index:      totalScore,
		Confidence: s.determineConfidence(totalScore, len(matches), decode),
		Matched:    matched,
		Unmatched:  unmatched,
		Superseded: superseded,
		Strategies: strategies,
		Signals:    signals,
	}
}

func tally(matches []model.MatchResult) (matched, unmatched, superseded int) {
	for _, m := range matches {
		switch {
		case m.Matched():
			matched++
		case m.Status == model.StatusSuperseded:
			superseded++
		default:
			unmatched++
		}
	}
	return matched, unmatched, superseded
}

func (s *Scorer) decodeFailure(decode model.DecodeInfo) model.Signal {
	return model.Signal{
		Type:        model.SignalDecodeFailure,
		Severity:    model.SeverityCritical,
		Description: fmt.Sprintf("Service output could not be decoded (%d passes failed)", len(decode.Failures)),
		Data: map[string]interface{}{
			"failures": decode.Failures,
		},
	}
}

func (s *Scorer) decodeRepaired(decode model.DecodeInfo) model.Signal {
	severity := model.SeverityInfo
	if decode.AnnotationStripped {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        model.SignalDecodeRepaired,
		Severity:    severity,
		Description: fmt.Sprintf("Service output needed repair (succeeded at %s pass)", decode.Pass),
		Data: map[string]interface{}{
			"pass":                decode.Pass,
			"failed_passes":       len(decode.Failures),
			"annotation_stripped": decode.AnnotationStripped,
		},
	}
}

// calculateCoverage calculates claim coverage score (0-70 points)
func (s *Scorer) calculateCoverage(claimCount, matched int) (int, model.Signal) {
	if claimCount == 0 {
		return 0, model.Signal{
			Type:        model.SignalAlignmentCoverage,
			Severity:    model.SeverityWarning,
			Description: "No claims to align",
			Data: map[string]interface{}{
				"claims":  0,
				"matched": 0,
			},
		}
	}

	ratio := float64(matched) / float64(claimCount)
	score := int(math.Round(ratio * 70))

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 0.8 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalAlignmentCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Anchored %d/%d claims (%.0f%%)", matched, claimCount, ratio*100),
		Data: map[string]interface{}{
			"claims":  claimCount,
			"matched": matched,
			"ratio":   ratio,
			"score":   score,
			"formula": "matched / claims * 70",
		},
	}
}

// calculateStrategyMix calculates match strength score (0-30 points) from
// the mean score of anchored claims
func (s *Scorer) calculateStrategyMix(matches []model.MatchResult) (int, map[string]int, model.Signal) {
	strategies := make(map[string]int)
	var total float64
	var loose, count int

	for _, m := range matches {
		if !m.Matched() {
			continue
		}
		strategies[string(m.Strategy)]++
		total += m.Score
		count++
		if m.Strategy == model.StrategyKeyPhrase || m.Strategy == model.StrategyWordOverlap {
			loose++
		}
	}

	if count == 0 {
		return 0, nil, model.Signal{}
	}

	mean := total / float64(count)
	score := int(math.Round(math.Min(mean, 1) * 30))

	severity := model.SeverityInfo
	if loose*2 > count {
		severity = model.SeverityWarning
	}

	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)

	return score, strategies, model.Signal{
		Type:        model.SignalStrategyMix,
		Severity:    severity,
		Description: fmt.Sprintf("Mean match score %.2f across %d strategies", mean, len(names)),
		Data: map[string]interface{}{
			"strategies":    names,
			"counts":        strategies,
			"loose_matches": loose,
			"mean_score":    mean,
			"score":         score,
			"formula":       "mean(match_score) * 30",
		},
	}
}

// detectMisses reports claims no strategy could anchor
func (s *Scorer) detectMisses(matches []model.MatchResult) model.Signal {
	var missed []int
	for _, m := range matches {
		if !m.Matched() && m.Status != model.StatusSuperseded {
			missed = append(missed, m.Index)
		}
	}
	if len(missed) == 0 {
		return model.Signal{}
	}
	sort.Ints(missed)

	return model.Signal{
		Type:        model.SignalAlignmentMiss,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d claims could not be located in the transcript", len(missed)),
		Data: map[string]interface{}{
			"claim_indices": missed,
		},
	}
}

// detectConflicts reports claims dropped to avoid double tagging
func (s *Scorer) detectConflicts(matches []model.MatchResult) model.Signal {
	conflicts := make(map[int]int)
	for _, m := range matches {
		if m.Status == model.StatusSuperseded && m.SupersededBy != nil {
			conflicts[m.Index] = *m.SupersededBy
		}
	}
	if len(conflicts) == 0 {
		return model.Signal{}
	}

	return model.Signal{
		Type:        model.SignalOverlapConflict,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d claims overlapped text already tagged by another claim", len(conflicts)),
		Data: map[string]interface{}{
			"superseded_by": conflicts,
		},
	}
}

// determineConfidence determines the confidence level based on the score
func (s *Scorer) determineConfidence(score int, claimCount int, decode model.DecodeInfo) string {
	if claimCount < 3 {
		return "low"
	}

	level := "low"
	if score >= 80 {
		level = "high"
	} else if score >= 60 {
		level = "medium"
	}

	// A stripped or rejected annotation means the payload itself was damaged
	if level == "high" && (decode.AnnotationStripped || decode.AnnotationRejected) {
		level = "medium"
	}
	return level
}
