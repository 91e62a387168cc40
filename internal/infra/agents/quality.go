package agents

import (
	"regexp"
	"strings"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

var (
	rxNatspec   = regexp.MustCompile(`///|/\*\*`)
	rxEvent     = regexp.MustCompile(`(?m)^\s*event\s+[A-Z]`)
	rxMagic     = regexp.MustCompile(`[^\w.](\d{5,})[^\w.]`)
	rxTodo      = regexp.MustCompile(`(?i)//\s*(todo|fixme|hack)`)
	rxLongParam = regexp.MustCompile(`function\s+\w+\s*\(([^)]*,){5,}`)
)

func newQualityAgent(infer analysis.InferenceClient) *Agent {
	a := &Agent{
		id:     "quality",
		weight: 1,
		infer:  infer,
	}
	a.post = func(info *analysis.ContractInfo, res *analysis.AgentResult) {
		var issues, strengths []string

		if !rxNatspec.MatchString(info.Source) {
			issues = append(issues, "No NatSpec documentation on public interfaces.")
		} else {
			strengths = append(strengths, "Public interfaces carry NatSpec documentation.")
		}
		if rxEvent.MatchString(info.Source) {
			strengths = append(strengths, "State changes emit events.")
		} else if strings.Contains(info.Source, "function") {
			issues = append(issues, "State-changing functions emit no events; off-chain observers cannot track changes.")
		}
		if rxMagic.MatchString(info.Source) {
			issues = append(issues, "Magic numeric literals; prefer named constants.")
		}
		if rxTodo.MatchString(info.Source) {
			issues = append(issues, "TODO/FIXME markers indicate unfinished code paths.")
		}
		if rxLongParam.MatchString(info.Source) {
			issues = append(issues, "Functions take six or more parameters; consider a struct argument.")
		}
		if info.Complexity == "complex" {
			issues = append(issues, "High structural complexity; consider splitting the contract.")
		}

		score := 100 - len(issues)*12
		if score < 0 {
			score = 0
		}
		res.QualityIssues = issues
		res.Strengths = strengths
		res.Score = score
	}
	return a
}
