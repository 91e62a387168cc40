package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

// maxSourceChars bounds how much source goes into the user prompt.
const maxSourceChars = 24000

var agentFocus = map[string]string{
	"security":       "reentrancy, access control, delegatecall, unchecked external calls, integer overflow",
	"gas":            "storage layout, loop costs, redundant reads, calldata vs memory",
	"quality":        "documentation, events, naming, dead code, error handling",
	"defi":           "price manipulation, flash loans, token integration pitfalls",
	"mev":            "sandwichable swaps, missing slippage bounds, ordering-dependent logic",
	"governance":     "centralized control, vote manipulation, timelock gaps",
	"upgradeability": "proxy patterns, initializer protection, storage collisions",
	"oracle":         "stale prices, deprecated feeds, single-source dependence",
}

// ForAgent builds the system and user prompts for one agent's inference call.
func ForAgent(agentID, contractName, source string) (system, user string) {
	focus, ok := agentFocus[agentID]
	if !ok {
		focus = "general smart contract risks"
	}
	system = fmt.Sprintf(`You are a smart contract auditor specialized in: %s.
Respond with a JSON object only, shaped as:
{"findings":[{"name":"","category":"","severity":"low|medium|high|critical","lineStart":0,"lineEnd":0,"description":"","remediation":"","confidence":0.0}]}
Report nothing outside your specialty. An empty findings array is a valid answer.`, focus)

	src := source
	if len(src) > maxSourceChars {
		src = src[:maxSourceChars]
	}
	user = fmt.Sprintf("Audit contract %s:\n\n%s", contractName, src)
	return system, user
}

// ParseFindings decodes a model response into findings attributed to agentID.
// Severity and confidence are clamped to valid ranges; entries without a
// name are dropped.
func ParseFindings(agentID, raw string) ([]analysis.Finding, error) {
	raw = strings.TrimSpace(raw)
	// Some models wrap JSON in a fenced block despite instructions.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var body struct {
		Findings []analysis.Finding `json:"findings"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("decoding model findings: %w", err)
	}

	out := make([]analysis.Finding, 0, len(body.Findings))
	for _, f := range body.Findings {
		if strings.TrimSpace(f.Name) == "" {
			continue
		}
		if f.Severity.Rank() < 0 {
			f.Severity = analysis.SeverityLow
		}
		if f.Confidence <= 0 || f.Confidence > 1 {
			f.Confidence = 0.5
		}
		if f.LineEnd < f.LineStart {
			f.LineEnd = f.LineStart
		}
		f.AgentID = agentID
		out = append(out, f)
	}
	return out, nil
}
