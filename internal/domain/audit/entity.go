package audit

import (
	"time"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

// EntryID identifier type
type EntryID string

// Status enum
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IntegrityVersion tags the digest scheme used to stamp an entry.
const IntegrityVersion = "2"

// EnvelopeVersion is the version of the exported ledger snapshot format.
const EnvelopeVersion = "2.0"

// FindingSummary is the audited projection of one finding. The raw source
// never reaches the ledger; line ranges and text summaries do.
type FindingSummary struct {
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Severity   analysis.Severity `json:"severity"`
	LineStart  int               `json:"lineStart"`
	LineEnd    int               `json:"lineEnd"`
	Confidence float64           `json:"confidence"`
	AgentID    string            `json:"agentId"`
}

// ReportData is the sanitized projection of an analysis report persisted in
// a ledger entry.
type ReportData struct {
	AnalysisID   analysis.AnalysisID     `json:"analysisId"`
	ContractName string                  `json:"contractName"`
	Chain        string                  `json:"chain"`
	Status       Status                  `json:"status"`
	OverallScore int                     `json:"overallScore"`
	RiskLevel    analysis.RiskLevel      `json:"riskLevel"`
	Mode         analysis.Mode           `json:"analysisMode"`
	AgentsUsed   []string                `json:"agentsUsed"`
	Partial      bool                    `json:"partial"`
	DurationMS   int64                   `json:"durationMs"`
	Counts       analysis.SeverityCounts `json:"counts"`
	Findings     []FindingSummary        `json:"findings"`
	Summary      string                  `json:"summary"`
	ArtifactURL  string                  `json:"artifactUrl,omitempty"`
}

// Integrity carries the secondary checksum and the scheme version.
type Integrity struct {
	Checksum string `json:"checksum"`
	Version  string `json:"version"`
}

// Entry is one immutable, integrity-stamped record of a finished analysis.
// Once written it is only ever read or verified, never mutated.
type Entry struct {
	ID        EntryID    `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Hash      string     `json:"hash"`
	Data      ReportData `json:"data"`
	Integrity Integrity  `json:"integrity"`
}

// Envelope is the exported snapshot projection of the whole ledger.
type Envelope struct {
	Version  string           `json:"version"`
	Created  time.Time        `json:"created"`
	Audits   []*Entry         `json:"audits"`
	Metadata EnvelopeMetadata `json:"metadata"`
}

type EnvelopeMetadata struct {
	TotalAudits int       `json:"totalAudits"`
	LastAudit   time.Time `json:"lastAudit"`
}

// QueryFilter narrows a history read. Zero values mean "no constraint".
type QueryFilter struct {
	From         time.Time
	To           time.Time
	Status       Status
	RiskLevel    analysis.RiskLevel
	ContractName string
	Offset       int
	Limit        int
}

// Matches reports whether e satisfies every set constraint.
func (f QueryFilter) Matches(e *Entry) bool {
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	if f.Status != "" && e.Data.Status != f.Status {
		return false
	}
	if f.RiskLevel != "" && e.Data.RiskLevel != f.RiskLevel {
		return false
	}
	if f.ContractName != "" && e.Data.ContractName != f.ContractName {
		return false
	}
	return true
}

// FindingFrequency is one (category, severity) pair ranked by occurrence.
type FindingFrequency struct {
	Category string            `json:"category"`
	Severity analysis.Severity `json:"severity"`
	Count    int               `json:"count"`
}

// Statistics aggregates the ledger.
type Statistics struct {
	TotalAudits      int                        `json:"totalAudits"`
	SuccessfulAudits int                        `json:"successfulAudits"`
	FailedAudits     int                        `json:"failedAudits"`
	RiskDistribution map[analysis.RiskLevel]int `json:"riskDistribution"`
	AverageScore     float64                    `json:"averageScore"`
	TotalFindings    int                        `json:"totalFindings"`
	Last24h          int                        `json:"last24h"`
	Last7d           int                        `json:"last7d"`
	TopFindings      []FindingFrequency         `json:"topFindings"`
}

// Mismatch records one entry whose recomputed digests disagree with the
// stored ones. Evidence of corruption or tampering, never auto-repaired.
type Mismatch struct {
	EntryID  EntryID `json:"entryId"`
	Field    string  `json:"field"` // hash | checksum | structure
	Expected string  `json:"expected"`
	Actual   string  `json:"actual"`
}

// IntegrityReport is the outcome of a full-ledger verification pass.
type IntegrityReport struct {
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
	VerifiedAt time.Time  `json:"verifiedAt"`
}

// OK reports whether the pass found no mismatches.
func (r *IntegrityReport) OK() bool { return len(r.Mismatches) == 0 }
