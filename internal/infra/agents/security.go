package agents

import (
	"regexp"
	"strings"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

var (
	rxExternalCall = regexp.MustCompile(`\.\s*(call\s*\{?\s*value|call\.value|send\s*\(|transfer\s*\()`)
	rxBalanceWrite = regexp.MustCompile(`(balances?\s*\[[^\]]*\]\s*(=|-=|\+=)|balance\s*(=|-=|\+=))`)
)

func newSecurityAgent(infer analysis.InferenceClient) *Agent {
	return &Agent{
		id:     "security",
		weight: 3,
		infer:  infer,
		detectors: []detector{
			{
				re:          regexp.MustCompile(`\btx\.origin\b`),
				name:        "tx.origin authentication",
				category:    "access-control",
				severity:    analysis.SeverityHigh,
				confidence:  0.9,
				description: "tx.origin is used for authorization; a malicious intermediate contract can satisfy the check on a victim's behalf.",
				remediation: "Authenticate with msg.sender instead of tx.origin.",
			},
			{
				re:          regexp.MustCompile(`\bselfdestruct\s*\(`),
				name:        "selfdestruct reachable",
				category:    "access-control",
				severity:    analysis.SeverityHigh,
				confidence:  0.8,
				description: "selfdestruct is present; if reachable by an unauthorized caller the contract and its balance can be destroyed.",
				remediation: "Guard selfdestruct behind strict owner checks or remove it.",
			},
			{
				re:          regexp.MustCompile(`\bdelegatecall\s*\(`),
				name:        "delegatecall to dynamic target",
				category:    "delegatecall",
				severity:    analysis.SeverityHigh,
				confidence:  0.75,
				description: "delegatecall executes foreign code in this contract's storage context.",
				remediation: "Restrict delegatecall targets to immutable, audited addresses.",
			},
			{
				re:          regexp.MustCompile(`block\.(timestamp|number)\s*[%<>]`),
				name:        "block value as entropy or deadline",
				category:    "randomness",
				severity:    analysis.SeverityMedium,
				confidence:  0.7,
				description: "Block values are miner-influenced and unsuitable as randomness or tight deadlines.",
				remediation: "Use a commit-reveal scheme or an oracle-provided randomness source.",
			},
			{
				re:          regexp.MustCompile(`pragma\s+solidity\s*[\^>]?\s*0\.[1-7]\.`),
				name:        "pre-0.8 compiler without overflow checks",
				category:    "arithmetic",
				severity:    analysis.SeverityMedium,
				confidence:  0.8,
				description: "Solidity before 0.8 wraps on overflow unless SafeMath is applied everywhere.",
				remediation: "Upgrade the pragma to ^0.8.0 or apply SafeMath to all arithmetic.",
			},
			{
				re:          regexp.MustCompile(`(?m)function\s+\w+\s*\([^)]*\)\s+(public|external)\s+(payable\s+)?\{`),
				name:        "unrestricted state-changing function",
				category:    "access-control",
				severity:    analysis.SeverityLow,
				confidence:  0.5,
				description: "A public or external function carries no modifier; verify it is intentionally permissionless.",
				remediation: "Add onlyOwner/role modifiers to functions that mutate privileged state.",
			},
		},
		checks: []check{checkReentrancy},
	}
}

// checkReentrancy flags an external value transfer that happens before a
// balance-state write. The classic withdraw bug: the callee re-enters while
// the stale balance is still recorded.
func checkReentrancy(info *analysis.ContractInfo) []analysis.Finding {
	callLoc := rxExternalCall.FindStringIndex(info.Source)
	if callLoc == nil {
		return nil
	}
	writeLoc := rxBalanceWrite.FindStringIndex(info.Source[callLoc[1]:])
	if writeLoc == nil {
		return nil
	}
	callLine := lineOf(info.Source, callLoc[0])
	writeLine := lineOf(info.Source, callLoc[1]+writeLoc[0])

	sev := analysis.SeverityHigh
	// A guarded call lowers the blast radius but the ordering is still wrong.
	if strings.Contains(info.Source, "nonReentrant") || strings.Contains(info.Source, "ReentrancyGuard") {
		sev = analysis.SeverityMedium
	}
	return []analysis.Finding{{
		Name:        "reentrancy: external call before state update",
		Category:    "reentrancy",
		Severity:    sev,
		LineStart:   callLine,
		LineEnd:     writeLine,
		Description: "An external call transfers value before the caller's balance is written down; a re-entering callee can drain funds against the stale balance.",
		Remediation: "Apply checks-effects-interactions: update balances before the external call, or add a reentrancy guard.",
		Confidence:  0.85,
		AgentID:     "security",
	}}
}
