package score

import (
	"testing"

	"github.com/ppiankov/claimalign/internal/model"
)

func matchedResult(i int, strategy model.Strategy, score float64) model.MatchResult {
	return model.MatchResult{
		Index:    i,
		Claim:    &model.Claim{Category: model.CategoryVerified, Text: "Test claim"},
		Span:     &model.Span{Start: i * 10, End: i*10 + 5},
		Strategy: strategy,
		Score:    score,
		Status:   model.StatusMatched,
	}
}

func unmatchedResult(i int) model.MatchResult {
	return model.MatchResult{
		Index:  i,
		Claim:  &model.Claim{Category: model.CategoryFalse, Text: "Missing claim"},
		Status: model.StatusUnmatched,
	}
}

func supersededResult(i, owner int) model.MatchResult {
	return model.MatchResult{
		Index:        i,
		Claim:        &model.Claim{Category: model.CategoryOpinion, Text: "Overlapping claim"},
		Status:       model.StatusSuperseded,
		SupersededBy: &owner,
	}
}

func findSignal(signals []model.Signal, typ model.SignalType) *model.Signal {
	for i := range signals {
		if signals[i].Type == typ {
			return &signals[i]
		}
	}
	return nil
}

func TestScorer_Calculate_AllExact(t *testing.T) {
	scorer := NewScorer()

	matches := make([]model.MatchResult, 5)
	for i := range matches {
		matches[i] = matchedResult(i, model.StrategyExact, 1)
	}

	result := scorer.Calculate(model.DecodeInfo{Pass: "direct"}, matches)

	// Coverage 70 + strength 30
	if result.Index != 100 {
		t.Errorf("Expected index 100, got %d", result.Index)
	}
	if result.Confidence != "high" {
		t.Errorf("Expected high confidence, got %s", result.Confidence)
	}
	if result.Matched != 5 || result.Unmatched != 0 || result.Superseded != 0 {
		t.Errorf("Unexpected tally: %+v", result)
	}
	if result.Strategies["exact"] != 5 {
		t.Errorf("Expected 5 exact matches, got %v", result.Strategies)
	}
	if findSignal(result.Signals, model.SignalDecodeRepaired) != nil {
		t.Error("Expected no repair signal for a direct decode")
	}
}

func TestScorer_Calculate_MissesAndConflicts(t *testing.T) {
	scorer := NewScorer()

	matches := []model.MatchResult{
		matchedResult(0, model.StrategyExact, 1),
		matchedResult(1, model.StrategyWordOverlap, 0.5),
		supersededResult(2, 0),
		unmatchedResult(3),
	}

	result := scorer.Calculate(model.DecodeInfo{Pass: "direct"}, matches)

	// Coverage: 2/4 * 70 = 35, strength: mean 0.75 * 30 = 22.5 -> 23 (rounded)
	if result.Index != 58 {
		t.Errorf("Expected index 58, got %d", result.Index)
	}
	if result.Confidence != "low" {
		t.Errorf("Expected low confidence, got %s", result.Confidence)
	}
	if result.Matched != 2 || result.Unmatched != 1 || result.Superseded != 1 {
		t.Errorf("Unexpected tally: matched=%d unmatched=%d superseded=%d", result.Matched, result.Unmatched, result.Superseded)
	}

	miss := findSignal(result.Signals, model.SignalAlignmentMiss)
	if miss == nil {
		t.Fatal("Expected alignment_miss signal")
	}
	if idx := miss.Data["claim_indices"].([]int); len(idx) != 1 || idx[0] != 3 {
		t.Errorf("Expected missed claim 3, got %v", idx)
	}

	conflict := findSignal(result.Signals, model.SignalOverlapConflict)
	if conflict == nil {
		t.Fatal("Expected overlap_conflict signal")
	}
	if owners := conflict.Data["superseded_by"].(map[int]int); owners[2] != 0 {
		t.Errorf("Expected claim 2 superseded by 0, got %v", owners)
	}

	coverage := findSignal(result.Signals, model.SignalAlignmentCoverage)
	if coverage == nil || coverage.Severity != model.SeverityWarning {
		t.Errorf("Expected warning coverage signal at 50%%, got %+v", coverage)
	}
}

func TestScorer_Calculate_EmptyClaims(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Calculate(model.DecodeInfo{Pass: "direct"}, nil)

	if result.Index != 0 {
		t.Errorf("Expected index 0 for empty input, got %d", result.Index)
	}
	if result.Confidence == "" {
		t.Error("Expected confidence to be set even for empty input")
	}
	if findSignal(result.Signals, model.SignalAlignmentCoverage) == nil {
		t.Error("Expected coverage signal even for empty input")
	}
}

func TestScorer_Calculate_DecodeFailure(t *testing.T) {
	scorer := NewScorer()

	info := model.DecodeInfo{
		Pass:         "none",
		Unstructured: true,
		Failures:     []string{"direct: bad", "extract: bad"},
	}
	result := scorer.Calculate(info, nil)

	if result.Index != 0 || result.Confidence != "low" {
		t.Errorf("Expected zero index and low confidence, got %d/%s", result.Index, result.Confidence)
	}
	if len(result.Signals) != 1 || result.Signals[0].Type != model.SignalDecodeFailure {
		t.Fatalf("Expected a single decode_failure signal, got %+v", result.Signals)
	}
	if result.Signals[0].Severity != model.SeverityCritical {
		t.Errorf("Expected critical severity, got %s", result.Signals[0].Severity)
	}
}

func TestScorer_Calculate_RepairedAndTruncated(t *testing.T) {
	scorer := NewScorer()

	matches := make([]model.MatchResult, 4)
	for i := range matches {
		matches[i] = matchedResult(i, model.StrategyExact, 1)
	}

	info := model.DecodeInfo{
		Pass:               "strip_annotation",
		Failures:           []string{"direct: x", "extract: x", "normalize: x", "separators: x", "targeted: x"},
		AnnotationStripped: true,
		AnnotationRejected: true,
	}
	result := scorer.Calculate(info, matches)

	repaired := findSignal(result.Signals, model.SignalDecodeRepaired)
	if repaired == nil {
		t.Fatal("Expected decode_repaired signal")
	}
	if repaired.Severity != model.SeverityWarning {
		t.Errorf("Expected warning when the annotation was stripped, got %s", repaired.Severity)
	}
	if findSignal(result.Signals, model.SignalTruncationDetected) == nil {
		t.Error("Expected truncation_detected signal")
	}
	if result.Confidence != "medium" {
		t.Errorf("Expected confidence capped at medium, got %s", result.Confidence)
	}
}

func TestScorer_Calculate_LooseStrategies(t *testing.T) {
	scorer := NewScorer()

	matches := []model.MatchResult{
		matchedResult(0, model.StrategyKeyPhrase, 0.6),
		matchedResult(1, model.StrategyWordOverlap, 0.5),
		matchedResult(2, model.StrategyFuzzySegment, 0.9),
	}

	result := scorer.Calculate(model.DecodeInfo{Pass: "direct"}, matches)

	mix := findSignal(result.Signals, model.SignalStrategyMix)
	if mix == nil {
		t.Fatal("Expected strategy_mix signal")
	}
	if mix.Severity != model.SeverityWarning {
		t.Errorf("Expected warning when most matches are loose, got %s", mix.Severity)
	}
	if len(result.Strategies) != 3 {
		t.Errorf("Expected 3 strategies, got %v", result.Strategies)
	}
}
