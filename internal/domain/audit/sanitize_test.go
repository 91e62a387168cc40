package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

func sampleReport() *analysis.Report {
	return &analysis.Report{
		ContractName: "Vault",
		Chain:        "ethereum",
		Vulnerabilities: []analysis.Finding{
			{
				Name:        "reentrancy",
				Category:    "reentrancy",
				Severity:    analysis.SeverityHigh,
				LineStart:   10,
				LineEnd:     14,
				Description: "external call before balances[msg.sender] = 0",
				Remediation: "checks-effects-interactions",
				Confidence:  0.85,
				AgentID:     "security",
			},
		},
		OverallScore: 65,
		RiskLevel:    analysis.RiskMedium,
		Summary:      "1 findings across 2 agents.",
		Metadata: analysis.Metadata{
			AnalysisID:    "analysis-1",
			Mode:          analysis.ModeQuick,
			ExecutionTime: 1200,
			AgentsUsed:    []string{"security", "gas"},
			Partial:       true,
			Timestamp:     time.Now(),
		},
	}
}

func TestSanitizeProjection(t *testing.T) {
	r := sampleReport()
	d := Sanitize(r)

	if d.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", d.Status)
	}
	if d.AnalysisID != r.Metadata.AnalysisID || d.ContractName != "Vault" || d.Chain != "ethereum" {
		t.Fatalf("identity fields not carried over: %+v", d)
	}
	if d.DurationMS != 1200 || !d.Partial {
		t.Fatalf("metadata fields not carried over: %+v", d)
	}
	if len(d.Findings) != 1 || d.Findings[0].AgentID != "security" || d.Findings[0].LineStart != 10 {
		t.Fatalf("finding projection wrong: %+v", d.Findings)
	}
	if d.Counts.High != 1 || d.Counts.Total != 1 {
		t.Fatalf("severity counts wrong: %+v", d.Counts)
	}
}

func TestSanitizeFailedStatus(t *testing.T) {
	r := sampleReport()
	r.Metadata.Error = true
	if d := Sanitize(r); d.Status != StatusFailed {
		t.Fatalf("error metadata should map to failed status, got %q", d.Status)
	}
}

func TestSanitizeExcludesDescriptions(t *testing.T) {
	d := Sanitize(sampleReport())
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	// Finding descriptions can quote source fragments; they must not be
	// persisted in the ledger record.
	if strings.Contains(string(b), "balances[msg.sender]") {
		t.Fatalf("ledger payload leaked finding description text: %s", b)
	}
}
