package analysis

import (
	"fmt"
	"sort"
	"strings"

	domain "github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

// Aggregator merges per-agent results into the unified report body.
type Aggregator struct {
	ConfidenceThreshold float64
	HighRiskThreshold   int
	MediumRiskThreshold int
}

func NewAggregator(confidence float64, high, medium int) *Aggregator {
	return &Aggregator{
		ConfidenceThreshold: confidence,
		HighRiskThreshold:   high,
		MediumRiskThreshold: medium,
	}
}

// Aggregate combines the successful subset of agent results. weights maps
// agent id to its score weight. Callers guarantee at least one success.
func (g *Aggregator) Aggregate(results []*domain.AgentResult, weights map[string]int) (*domain.Report, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no successful agent results", domain.ErrAggregation)
	}

	var all []domain.Finding
	for _, r := range results {
		all = append(all, r.Findings...)
	}
	findings := g.threshold(dedup(all))

	score := weightedScore(results, weights)
	risk := g.riskLevel(score, findings)

	report := &domain.Report{
		Vulnerabilities:  findings,
		OverallScore:     score,
		RiskLevel:        risk,
		Recommendations:  mergeTexts(results, func(r *domain.AgentResult) []string { return r.Recommendations }),
		GasOptimizations: mergeGasNotes(results),
		CodeQuality:      mergeQuality(results, score),
	}
	report.Summary = summarize(report, len(results))
	return report, nil
}

// dedup merges findings that share a category and overlap in line range.
// The higher-severity finding survives; descriptions are unioned with the
// higher-confidence text first; the merge is a new record.
func dedup(findings []domain.Finding) []domain.Finding {
	sorted := make([]domain.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Severity.Rank() != sorted[j].Severity.Rank() {
			return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var kept []domain.Finding
	for _, f := range sorted {
		merged := false
		for i := range kept {
			if kept[i].Category != f.Category || !kept[i].Overlaps(f) {
				continue
			}
			k := kept[i]
			if f.Description != "" && !strings.Contains(k.Description, f.Description) {
				if f.Confidence > k.Confidence {
					k.Description = f.Description + " " + k.Description
				} else {
					k.Description = k.Description + " " + f.Description
				}
			}
			if f.Confidence > k.Confidence {
				k.Confidence = f.Confidence
			}
			if f.LineStart < k.LineStart {
				k.LineStart = f.LineStart
			}
			if f.LineEnd > k.LineEnd {
				k.LineEnd = f.LineEnd
			}
			kept[i] = k
			merged = true
			break
		}
		if !merged {
			kept = append(kept, f)
		}
	}
	return kept
}

// threshold drops low-confidence findings unless that would empty the set,
// in which case the single highest-confidence finding is retained so a
// thresholding artifact never reads as "no issues".
func (g *Aggregator) threshold(findings []domain.Finding) []domain.Finding {
	if len(findings) == 0 {
		return []domain.Finding{}
	}
	out := make([]domain.Finding, 0, len(findings))
	best := findings[0]
	for _, f := range findings {
		if f.Confidence >= g.ConfidenceThreshold {
			out = append(out, f)
		}
		if f.Confidence > best.Confidence {
			best = f
		}
	}
	if len(out) == 0 {
		return []domain.Finding{best}
	}
	return out
}

// weightedScore is the weighted mean of per-agent scores.
func weightedScore(results []*domain.AgentResult, weights map[string]int) int {
	var sum, total int
	for _, r := range results {
		w := weights[r.AgentID]
		if w <= 0 {
			w = 1
		}
		sum += r.Score * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// riskLevel maps the score through the configured breakpoints. Any critical
// finding overrides the score-based mapping.
func (g *Aggregator) riskLevel(score int, findings []domain.Finding) domain.RiskLevel {
	for _, f := range findings {
		if f.Severity == domain.SeverityCritical {
			return domain.RiskCritical
		}
	}
	switch {
	case score >= g.HighRiskThreshold:
		return domain.RiskLow
	case score >= g.MediumRiskThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

// mergeTexts unions string lists with exact-text dedup only.
func mergeTexts(results []*domain.AgentResult, get func(*domain.AgentResult) []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, r := range results {
		for _, s := range get(r) {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func mergeGasNotes(results []*domain.AgentResult) []domain.GasNote {
	seen := map[string]bool{}
	out := []domain.GasNote{}
	for _, r := range results {
		for _, n := range r.GasNotes {
			if seen[n.Description] {
				continue
			}
			seen[n.Description] = true
			out = append(out, n)
		}
	}
	return out
}

// mergeQuality uses the quality agent's output when it ran, the overall
// score otherwise.
func mergeQuality(results []*domain.AgentResult, fallbackScore int) domain.CodeQuality {
	q := domain.CodeQuality{Score: fallbackScore, Issues: []string{}, Strengths: []string{}}
	for _, r := range results {
		if len(r.QualityIssues) == 0 && len(r.Strengths) == 0 {
			continue
		}
		q.Score = r.Score
		q.Issues = append(q.Issues, r.QualityIssues...)
		q.Strengths = append(q.Strengths, r.Strengths...)
	}
	return q
}

func summarize(r *domain.Report, agentCount int) string {
	c := domain.CountSeverities(r.Vulnerabilities)
	if c.Total == 0 {
		return fmt.Sprintf("No findings above the confidence threshold across %d agents. Overall score %d, risk %s.",
			agentCount, r.OverallScore, r.RiskLevel)
	}
	return fmt.Sprintf("%d findings (%d critical, %d high, %d medium, %d low) across %d agents. Overall score %d, risk %s.",
		c.Total, c.Critical, c.High, c.Medium, c.Low, agentCount, r.OverallScore, r.RiskLevel)
}
