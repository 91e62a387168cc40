package audit

import (
	"testing"
	"time"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

func TestQueryFilterMatches(t *testing.T) {
	ts := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	e := &Entry{
		Timestamp: ts,
		Data: ReportData{
			ContractName: "Vault",
			Status:       StatusCompleted,
			RiskLevel:    analysis.RiskHigh,
		},
	}

	cases := []struct {
		name string
		f    QueryFilter
		want bool
	}{
		{"zero filter", QueryFilter{}, true},
		{"window hit", QueryFilter{From: ts.Add(-time.Hour), To: ts.Add(time.Hour)}, true},
		{"before window", QueryFilter{From: ts.Add(time.Minute)}, false},
		{"after window", QueryFilter{To: ts.Add(-time.Minute)}, false},
		{"status hit", QueryFilter{Status: StatusCompleted}, true},
		{"status miss", QueryFilter{Status: StatusFailed}, false},
		{"risk hit", QueryFilter{RiskLevel: analysis.RiskHigh}, true},
		{"risk miss", QueryFilter{RiskLevel: analysis.RiskLow}, false},
		{"contract hit", QueryFilter{ContractName: "Vault"}, true},
		{"contract miss", QueryFilter{ContractName: "Token"}, false},
	}
	for _, c := range cases {
		if got := c.f.Matches(e); got != c.want {
			t.Errorf("%s: Matches = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIntegrityReportOK(t *testing.T) {
	r := &IntegrityReport{Checked: 3}
	if !r.OK() {
		t.Fatalf("report with no mismatches should be OK")
	}
	r.Mismatches = append(r.Mismatches, Mismatch{Field: "hash"})
	if r.OK() {
		t.Fatalf("report with mismatches should not be OK")
	}
}
