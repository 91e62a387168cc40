package agents

import (
	"regexp"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

var gasPatterns = []struct {
	re          *regexp.Regexp
	description string
	saving      string
}{
	{regexp.MustCompile(`(?m)for\s*\([^;]*;\s*\w+\s*<\s*\w+\.length\s*;`), "Array length is re-read on every loop iteration.", "~100 gas per iteration"},
	{regexp.MustCompile(`(?m)^\s*(uint8|uint16|uint32)\s+\w+\s*;`), "Sub-word storage variable forces masking; uint256 is cheaper unless packed.", "~200 gas per access"},
	{regexp.MustCompile(`\bpublic\s+constant\b|\bconstant\s+public\b`), "Public constants generate getters; consider private with an explicit getter only where needed.", "deploy-time bytecode"},
	{regexp.MustCompile(`require\s*\(\s*[^,)]+\)\s*;`), "require without a reason string still costs revert data handling; short custom errors are cheaper.", "~50 gas per revert"},
	{regexp.MustCompile(`\bstring\s+(public|private|internal)?\s*\w+\s*;`), "Storage strings are expensive; bytes32 fits most identifiers.", "~20k gas per slot"},
}

func newGasAgent(infer analysis.InferenceClient) *Agent {
	a := &Agent{
		id:     "gas",
		weight: 1,
		infer:  infer,
	}
	a.post = func(info *analysis.ContractInfo, res *analysis.AgentResult) {
		for _, p := range gasPatterns {
			loc := p.re.FindStringIndex(info.Source)
			if loc == nil {
				continue
			}
			res.GasNotes = append(res.GasNotes, analysis.GasNote{
				Description: p.description,
				LineStart:   lineOf(info.Source, loc[0]),
				EstSaving:   p.saving,
			})
		}
		// Gas notes are advisory; they cost score only lightly.
		penalty := len(res.GasNotes) * 3
		if penalty > 30 {
			penalty = 30
		}
		if res.Score > penalty {
			res.Score -= penalty
		}
	}
	return a
}
