package audit

import (
	"testing"
	"time"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

func sampleEntry() *Entry {
	return &Entry{
		ID:        "entry-1",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Data: ReportData{
			AnalysisID:   "analysis-1",
			ContractName: "Vault",
			Chain:        "ethereum",
			Status:       StatusCompleted,
			OverallScore: 72,
			RiskLevel:    analysis.RiskMedium,
			Mode:         analysis.ModeQuick,
			AgentsUsed:   []string{"security", "gas"},
			Findings: []FindingSummary{
				{Name: "reentrancy", Category: "reentrancy", Severity: analysis.SeverityHigh, LineStart: 10, LineEnd: 14, Confidence: 0.85, AgentID: "security"},
			},
			Summary: "1 findings across 2 agents.",
		},
	}
}

func TestStampVerifyRoundTrip(t *testing.T) {
	e := sampleEntry()
	if err := e.Stamp(); err != nil {
		t.Fatalf("Stamp: %v", err)
	}
	if e.Hash == "" || e.Integrity.Checksum == "" {
		t.Fatalf("Stamp left digests empty: %+v", e)
	}
	if e.Hash == e.Integrity.Checksum {
		t.Fatalf("primary and secondary digests must differ in algorithm")
	}
	if e.Integrity.Version != IntegrityVersion {
		t.Fatalf("integrity version = %q, want %q", e.Integrity.Version, IntegrityVersion)
	}
	if mm := e.Verify(); len(mm) != 0 {
		t.Fatalf("freshly stamped entry failed verification: %+v", mm)
	}
}

func TestStampDeterministic(t *testing.T) {
	a, b := sampleEntry(), sampleEntry()
	if err := a.Stamp(); err != nil {
		t.Fatal(err)
	}
	if err := b.Stamp(); err != nil {
		t.Fatal(err)
	}
	if a.Hash != b.Hash || a.Integrity.Checksum != b.Integrity.Checksum {
		t.Fatalf("identical payloads produced different digests")
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	e := sampleEntry()
	if err := e.Stamp(); err != nil {
		t.Fatal(err)
	}

	e.Data.OverallScore = 100
	mm := e.Verify()
	if len(mm) != 2 {
		t.Fatalf("tampered payload should mismatch both digests, got %+v", mm)
	}
	fields := map[string]bool{}
	for _, m := range mm {
		fields[m.Field] = true
		if m.EntryID != e.ID {
			t.Errorf("mismatch should carry the entry id, got %q", m.EntryID)
		}
	}
	if !fields["hash"] || !fields["checksum"] {
		t.Fatalf("expected hash and checksum mismatches, got %+v", mm)
	}
}

func TestVerifyDetectsDigestTampering(t *testing.T) {
	e := sampleEntry()
	if err := e.Stamp(); err != nil {
		t.Fatal(err)
	}
	e.Hash = "0000"
	mm := e.Verify()
	if len(mm) != 1 || mm[0].Field != "hash" {
		t.Fatalf("forged hash should produce exactly one hash mismatch, got %+v", mm)
	}
}
