package audit

import (
	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

// Sanitize projects an analysis report into the audited record shape.
// Raw contract source is stripped; structural metadata and finding
// summaries are retained.
func Sanitize(r *analysis.Report) ReportData {
	status := StatusCompleted
	if r.Metadata.Error {
		status = StatusFailed
	}

	findings := make([]FindingSummary, 0, len(r.Vulnerabilities))
	for _, f := range r.Vulnerabilities {
		findings = append(findings, FindingSummary{
			Name:       f.Name,
			Category:   f.Category,
			Severity:   f.Severity,
			LineStart:  f.LineStart,
			LineEnd:    f.LineEnd,
			Confidence: f.Confidence,
			AgentID:    f.AgentID,
		})
	}

	return ReportData{
		AnalysisID:   r.Metadata.AnalysisID,
		ContractName: r.ContractName,
		Chain:        r.Chain,
		Status:       status,
		OverallScore: r.OverallScore,
		RiskLevel:    r.RiskLevel,
		Mode:         r.Metadata.Mode,
		AgentsUsed:   r.Metadata.AgentsUsed,
		Partial:      r.Metadata.Partial,
		DurationMS:   r.Metadata.ExecutionTime,
		Counts:       analysis.CountSeverities(r.Vulnerabilities),
		Findings:     findings,
		Summary:      r.Summary,
	}
}
