package analysis

import (
	"errors"
	"testing"

	domain "github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(0.7, 80, 50)
}

func TestAggregateRejectsEmptyInput(t *testing.T) {
	_, err := newTestAggregator().Aggregate(nil, nil)
	if !errors.Is(err, domain.ErrAggregation) {
		t.Fatalf("empty input should fail with ErrAggregation, got %v", err)
	}
}

func TestDedupMergesOverlappingSameCategory(t *testing.T) {
	findings := []domain.Finding{
		{Name: "reentrancy", Category: "reentrancy", Severity: domain.SeverityHigh, LineStart: 10, LineEnd: 14, Description: "call before write", Confidence: 0.85, AgentID: "security"},
		{Name: "reentrancy variant", Category: "reentrancy", Severity: domain.SeverityMedium, LineStart: 12, LineEnd: 18, Description: "withdraw pattern", Confidence: 0.9, AgentID: "defi"},
	}
	out := dedup(findings)
	if len(out) != 1 {
		t.Fatalf("overlapping same-category findings should merge, got %d", len(out))
	}
	m := out[0]
	if m.Severity != domain.SeverityHigh {
		t.Errorf("merge must keep the higher severity, got %s", m.Severity)
	}
	if m.Confidence != 0.9 {
		t.Errorf("merge must keep the max confidence, got %v", m.Confidence)
	}
	if m.LineStart != 10 || m.LineEnd != 18 {
		t.Errorf("merge must widen the line range, got %d-%d", m.LineStart, m.LineEnd)
	}
	if m.Description != "withdraw pattern call before write" {
		t.Errorf("descriptions should union higher-confidence first, got %q", m.Description)
	}
}

func TestDedupKeepsDistinct(t *testing.T) {
	findings := []domain.Finding{
		{Category: "reentrancy", Severity: domain.SeverityHigh, LineStart: 10, LineEnd: 14, Confidence: 0.8},
		{Category: "reentrancy", Severity: domain.SeverityHigh, LineStart: 40, LineEnd: 44, Confidence: 0.8},
		{Category: "access-control", Severity: domain.SeverityHigh, LineStart: 10, LineEnd: 14, Confidence: 0.8},
	}
	if out := dedup(findings); len(out) != 3 {
		t.Fatalf("disjoint or cross-category findings must not merge, got %d", len(out))
	}
}

func TestThresholdKeepsBestWhenAllBelow(t *testing.T) {
	g := newTestAggregator()
	findings := []domain.Finding{
		{Name: "a", Confidence: 0.5},
		{Name: "b", Confidence: 0.6},
	}
	out := g.threshold(findings)
	if len(out) != 1 || out[0].Name != "b" {
		t.Fatalf("thresholding to empty must retain the single best finding, got %+v", out)
	}
}

func TestThresholdDropsLowConfidence(t *testing.T) {
	g := newTestAggregator()
	findings := []domain.Finding{
		{Name: "keep", Confidence: 0.9},
		{Name: "drop", Confidence: 0.3},
	}
	out := g.threshold(findings)
	if len(out) != 1 || out[0].Name != "keep" {
		t.Fatalf("low-confidence finding should be dropped, got %+v", out)
	}
}

func TestWeightedScore(t *testing.T) {
	results := []*domain.AgentResult{
		{AgentID: "security", Score: 90},
		{AgentID: "gas", Score: 60},
	}
	weights := map[string]int{"security": 3, "gas": 1}
	if got := weightedScore(results, weights); got != 82 {
		t.Fatalf("weightedScore = %d, want 82", got)
	}
	// Unknown agents default to weight 1.
	if got := weightedScore(results, nil); got != 75 {
		t.Fatalf("unweighted score = %d, want 75", got)
	}
}

func TestRiskLevelMapping(t *testing.T) {
	g := newTestAggregator()
	cases := []struct {
		score int
		want  domain.RiskLevel
	}{
		{95, domain.RiskLow},
		{80, domain.RiskLow},
		{79, domain.RiskMedium},
		{50, domain.RiskMedium},
		{49, domain.RiskHigh},
		{0, domain.RiskHigh},
	}
	for _, c := range cases {
		if got := g.riskLevel(c.score, nil); got != c.want {
			t.Errorf("score %d: risk = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestCriticalFindingOverridesRisk(t *testing.T) {
	g := newTestAggregator()
	findings := []domain.Finding{{Severity: domain.SeverityCritical}}
	if got := g.riskLevel(95, findings); got != domain.RiskCritical {
		t.Fatalf("critical finding must force Critical risk, got %s", got)
	}
}

func TestAggregateReport(t *testing.T) {
	g := newTestAggregator()
	results := []*domain.AgentResult{
		{
			AgentID: "security",
			Score:   70,
			Findings: []domain.Finding{
				{Name: "reentrancy", Category: "reentrancy", Severity: domain.SeverityHigh, LineStart: 5, LineEnd: 9, Confidence: 0.85},
			},
			Recommendations: []string{"use checks-effects-interactions"},
		},
		{
			AgentID:         "gas",
			Score:           90,
			Recommendations: []string{"use checks-effects-interactions", "cache array length"},
			GasNotes:        []domain.GasNote{{Description: "storage read in loop", LineStart: 12}},
		},
		{
			AgentID:       "quality",
			Score:         88,
			QualityIssues: []string{"missing NatSpec"},
			Strengths:     []string{"events emitted on state changes"},
		},
	}
	weights := map[string]int{"security": 3, "gas": 1, "quality": 1}

	report, err := g.Aggregate(results, weights)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(report.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(report.Vulnerabilities))
	}
	// (70*3 + 90 + 88) / 5 = 77
	if report.OverallScore != 77 {
		t.Errorf("overall score = %d, want 77", report.OverallScore)
	}
	if report.RiskLevel != domain.RiskMedium {
		t.Errorf("risk = %s, want Medium", report.RiskLevel)
	}
	if len(report.Recommendations) != 2 {
		t.Errorf("recommendations should dedup exact text, got %v", report.Recommendations)
	}
	if len(report.GasOptimizations) != 1 {
		t.Errorf("gas notes not merged: %v", report.GasOptimizations)
	}
	if report.CodeQuality.Score != 88 || len(report.CodeQuality.Issues) != 1 {
		t.Errorf("quality agent output not used: %+v", report.CodeQuality)
	}
	if report.Summary == "" {
		t.Errorf("summary should be populated")
	}
}

func TestMergeQualityFallback(t *testing.T) {
	results := []*domain.AgentResult{{AgentID: "security", Score: 70}}
	q := mergeQuality(results, 64)
	if q.Score != 64 {
		t.Fatalf("without a quality agent the overall score is the fallback, got %d", q.Score)
	}
}
