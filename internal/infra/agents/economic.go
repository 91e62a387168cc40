package agents

import (
	"regexp"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

// Economic-class agents: defi, mev, governance, upgradeability, oracle.
// Each is a small detector table; they share weight 2, between security (3)
// and style/gas (1).

func newDefiAgent(infer analysis.InferenceClient) *Agent {
	return &Agent{
		id:     "defi",
		weight: 2,
		infer:  infer,
		detectors: []detector{
			{
				re:          regexp.MustCompile(`getReserves\s*\(\s*\)|balanceOf\s*\(\s*address\s*\(\s*this\s*\)\s*\)`),
				name:        "spot balance as price input",
				category:    "price-manipulation",
				severity:    analysis.SeverityHigh,
				confidence:  0.7,
				description: "Pool reserves or own balance read in the same transaction can be skewed with a flash loan.",
				remediation: "Price against a TWAP or an external oracle, never a same-block spot value.",
			},
			{
				re:          regexp.MustCompile(`\bflashLoan\s*\(|\bflash\s*\(`),
				name:        "flash loan entry point",
				category:    "flash-loan",
				severity:    analysis.SeverityMedium,
				confidence:  0.6,
				description: "Flash loan surface present; every state read in the borrow window is attacker-influenced.",
				remediation: "Re-validate invariants after repayment and isolate borrowable state.",
			},
			{
				re:          regexp.MustCompile(`transferFrom\s*\([^)]*\)\s*;`),
				name:        "unchecked transferFrom result",
				category:    "token-integration",
				severity:    analysis.SeverityMedium,
				confidence:  0.55,
				description: "Non-reverting ERC20s signal failure via the return value; dropping it silently loses funds accounting.",
				remediation: "Use SafeERC20 or check the boolean return of transferFrom.",
			},
		},
	}
}

func newMEVAgent(infer analysis.InferenceClient) *Agent {
	return &Agent{
		id:     "mev",
		weight: 2,
		infer:  infer,
		detectors: []detector{
			{
				re:          regexp.MustCompile(`amountOutMin\s*[:=]?\s*0\b|minOut\s*[:=]?\s*0\b`),
				name:        "zero slippage bound",
				category:    "mev",
				severity:    analysis.SeverityHigh,
				confidence:  0.75,
				description: "A swap with a zero minimum output is freely sandwichable.",
				remediation: "Require a caller-supplied slippage bound derived from an off-chain quote.",
			},
			{
				re:          regexp.MustCompile(`block\.timestamp\s*\+\s*\d+`),
				name:        "open-ended deadline",
				category:    "mev",
				severity:    analysis.SeverityLow,
				confidence:  0.5,
				description: "Deadlines computed from block.timestamp inside the transaction are always satisfied and give validators free ordering latitude.",
				remediation: "Accept the deadline as a caller parameter.",
			},
		},
	}
}

func newGovernanceAgent(infer analysis.InferenceClient) *Agent {
	return &Agent{
		id:     "governance",
		weight: 2,
		infer:  infer,
		detectors: []detector{
			{
				re:          regexp.MustCompile(`onlyOwner\b`),
				name:        "single-key privileged control",
				category:    "centralization",
				severity:    analysis.SeverityMedium,
				confidence:  0.6,
				description: "Privileged operations hang off a single owner key.",
				remediation: "Move privileged operations behind a timelock or multisig.",
			},
			{
				re:          regexp.MustCompile(`\bgetVotes\s*\(|votingPower\s*\(`),
				name:        "same-block voting power read",
				category:    "governance",
				severity:    analysis.SeverityMedium,
				confidence:  0.55,
				description: "Voting power read at call time can be flash-borrowed.",
				remediation: "Snapshot voting power at a past block (checkpointing).",
			},
		},
	}
}

func newUpgradeabilityAgent(infer analysis.InferenceClient) *Agent {
	return &Agent{
		id:     "upgradeability",
		weight: 2,
		infer:  infer,
		detectors: []detector{
			{
				re:          regexp.MustCompile(`function\s+initialize\s*\(`),
				name:        "unprotected initializer",
				category:    "upgradeability",
				severity:    analysis.SeverityHigh,
				confidence:  0.6,
				description: "An initialize function is present; if callable twice or by anyone, the proxy can be re-owned.",
				remediation: "Guard with an initializer modifier and disable initializers on the implementation.",
			},
			{
				re:          regexp.MustCompile(`upgradeTo\s*\(|upgradeToAndCall\s*\(`),
				name:        "upgrade entry point",
				category:    "upgradeability",
				severity:    analysis.SeverityMedium,
				confidence:  0.6,
				description: "Upgrade surface present; the authorization path decides the whole contract's trust model.",
				remediation: "Restrict upgrades to a timelocked governance path.",
			},
		},
	}
}

func newOracleAgent(infer analysis.InferenceClient) *Agent {
	return &Agent{
		id:     "oracle",
		weight: 2,
		infer:  infer,
		detectors: []detector{
			{
				re:          regexp.MustCompile(`latestAnswer\s*\(\s*\)`),
				name:        "deprecated oracle read",
				category:    "oracle",
				severity:    analysis.SeverityMedium,
				confidence:  0.8,
				description: "latestAnswer returns no freshness data; a stale price is indistinguishable from a live one.",
				remediation: "Use latestRoundData and validate updatedAt/answeredInRound.",
			},
			{
				re:          regexp.MustCompile(`latestRoundData\s*\(\s*\)\s*;`),
				name:        "oracle round data unchecked",
				category:    "oracle",
				severity:    analysis.SeverityLow,
				confidence:  0.5,
				description: "Round data fetched but the statement discards the staleness fields.",
				remediation: "Check updatedAt against a max-age bound before using the price.",
			},
		},
	}
}
