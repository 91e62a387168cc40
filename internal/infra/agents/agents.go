// Package agents holds the closed set of contract analyzers. Each agent is
// a detector table over the normalized source plus optional model-backed
// enrichment in comprehensive mode. Adding an agent means adding a
// constructor here, not patching a dispatch table.
package agents

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
	"github.com/euii-ii/NovaGuard-sub005/internal/infra/ai/prompt"
)

// detector is one static pattern check.
type detector struct {
	re          *regexp.Regexp
	name        string
	category    string
	severity    analysis.Severity
	confidence  float64
	description string
	remediation string
}

// check is a structural rule that cannot be expressed as one pattern
// (e.g. ordering between an external call and a state write).
type check func(info *analysis.ContractInfo) []analysis.Finding

// Agent implements analysis.Analyzer.
type Agent struct {
	id        string
	weight    int
	detectors []detector
	checks    []check
	infer     analysis.InferenceClient
	// post lets style/gas agents attach their secondary outputs.
	post func(info *analysis.ContractInfo, res *analysis.AgentResult)
}

func (a *Agent) ID() string  { return a.id }
func (a *Agent) Weight() int { return a.weight }

func (a *Agent) Analyze(ctx context.Context, info *analysis.ContractInfo, mode analysis.Mode) (*analysis.AgentResult, error) {
	res := &analysis.AgentResult{AgentID: a.id}

	for _, d := range a.detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, loc := range d.re.FindAllStringIndex(info.Source, -1) {
			line := lineOf(info.Source, loc[0])
			res.Findings = append(res.Findings, analysis.Finding{
				Name:        d.name,
				Category:    d.category,
				Severity:    d.severity,
				LineStart:   line,
				LineEnd:     line,
				Description: d.description,
				Remediation: d.remediation,
				Confidence:  d.confidence,
				AgentID:     a.id,
			})
			// one finding per detector is enough for the report
			break
		}
	}
	for _, c := range a.checks {
		res.Findings = append(res.Findings, c(info)...)
	}

	if mode == analysis.ModeComprehensive && a.infer != nil {
		extra, err := a.enrich(ctx, info)
		if err != nil {
			return nil, err
		}
		res.Findings = append(res.Findings, extra...)
	}

	res.Score = scoreFromFindings(res.Findings)
	for _, f := range res.Findings {
		if f.Remediation != "" {
			res.Recommendations = append(res.Recommendations, f.Remediation)
		}
	}
	if a.post != nil {
		a.post(info, res)
	}
	return res, nil
}

// enrich asks the external model for additional findings. Any call failure
// is a transient execution error so the executor can retry it.
func (a *Agent) enrich(ctx context.Context, info *analysis.ContractInfo) ([]analysis.Finding, error) {
	sys, user := prompt.ForAgent(a.id, info.Name, info.Source)
	raw, err := a.infer.Complete(ctx, sys, user)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &analysis.ExecutionError{AgentID: a.id, Transient: true, Cause: err}
	}
	findings, err := prompt.ParseFindings(a.id, raw)
	if err != nil {
		// Malformed model output degrades to static findings only.
		log.Printf("agent=%s model output unparsable: %v", a.id, err)
		return nil, nil
	}
	return findings, nil
}

// scoreFromFindings starts at 100 and deducts by severity.
func scoreFromFindings(findings []analysis.Finding) int {
	score := 100
	for _, f := range findings {
		switch f.Severity {
		case analysis.SeverityCritical:
			score -= 30
		case analysis.SeverityHigh:
			score -= 20
		case analysis.SeverityMedium:
			score -= 10
		case analysis.SeverityLow:
			score -= 5
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// lineOf converts a byte offset into a 1-based line number.
func lineOf(src string, off int) int {
	if off > len(src) {
		off = len(src)
	}
	return strings.Count(src[:off], "\n") + 1
}

// All constructs the supported agent set. infer may be nil; agents then run
// static detectors only regardless of mode.
func All(infer analysis.InferenceClient) []analysis.Analyzer {
	return []analysis.Analyzer{
		newSecurityAgent(infer),
		newGasAgent(infer),
		newQualityAgent(infer),
		newDefiAgent(infer),
		newMEVAgent(infer),
		newGovernanceAgent(infer),
		newUpgradeabilityAgent(infer),
		newOracleAgent(infer),
	}
}
