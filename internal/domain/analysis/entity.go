package analysis

import (
	"time"
)

// AnalysisID identifier type
type AnalysisID string

// Mode enum
type Mode string

const (
	ModeQuick         Mode = "quick"
	ModeComprehensive Mode = "comprehensive"
)

// Severity ordered enum: low < medium < high < critical
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordering position of a severity. Unknown values rank
// below low so a malformed agent payload can never outrank a real finding.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// RiskLevel enum derived from the overall score and critical findings
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// Request is an analysis submission. Immutable once submitted.
type Request struct {
	ContractCode string   `json:"contractCode"`
	Chain        string   `json:"chain"`
	Agents       []string `json:"agents,omitempty"`
	Mode         Mode     `json:"analysisMode,omitempty"`
}

// ContractInfo is the preprocessed read-only summary shared by all agents
// for one request.
type ContractInfo struct {
	Name          string `json:"name"`
	Chain         string `json:"chain"`
	Source        string `json:"-"`
	SizeBytes     int    `json:"sizeBytes"`
	Lines         int    `json:"lines"`
	FunctionCount int    `json:"functionCount"`
	Complexity    string `json:"complexity"` // simple | moderate | complex
}

// Finding is one vulnerability reported by exactly one agent. Merges during
// aggregation create a new record; originals are discarded, not mutated.
type Finding struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	LineStart   int      `json:"lineStart"`
	LineEnd     int      `json:"lineEnd"`
	Description string   `json:"description"`
	Remediation string   `json:"remediation"`
	Confidence  float64  `json:"confidence"`
	AgentID     string   `json:"agentId"`
}

// Overlaps reports whether two findings touch a common line range.
func (f Finding) Overlaps(o Finding) bool {
	return f.LineStart <= o.LineEnd && o.LineStart <= f.LineEnd
}

// GasNote is a gas-optimization suggestion, merged additively.
type GasNote struct {
	Description string `json:"description"`
	LineStart   int    `json:"lineStart"`
	EstSaving   string `json:"estimatedSaving,omitempty"`
}

// CodeQuality summarizes style/quality agent output.
type CodeQuality struct {
	Score     int      `json:"score"`
	Issues    []string `json:"issues"`
	Strengths []string `json:"strengths"`
}

// AgentResult is the uniform outcome of one agent task. Exactly one of
// (Findings/Score) or Err is meaningful; Failed distinguishes them.
type AgentResult struct {
	AgentID         string    `json:"agentId"`
	Findings        []Finding `json:"findings"`
	Score           int       `json:"score"`
	Recommendations []string  `json:"recommendations,omitempty"`
	GasNotes        []GasNote `json:"gasNotes,omitempty"`
	QualityIssues   []string  `json:"qualityIssues,omitempty"`
	Strengths       []string  `json:"strengths,omitempty"`
	Failed          bool      `json:"failed"`
	FailureKind     string    `json:"failureKind,omitempty"` // timeout | execution
	Err             error     `json:"-"`
	Attempts        int       `json:"attempts"`
	DurationMS      int64     `json:"durationMs"`
}

// Metadata describes how a report was produced.
type Metadata struct {
	AnalysisID    AnalysisID `json:"analysisId"`
	Mode          Mode       `json:"analysisMode"`
	ExecutionTime int64      `json:"executionTime"` // milliseconds
	AgentsUsed    []string   `json:"agentsUsed"`
	FromCache     bool       `json:"fromCache"`
	Partial       bool       `json:"partial"`
	Error         bool       `json:"error"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Report is the aggregate of all agent results for one request. Immutable
// once aggregation completes; this is the unit cached and the unit audited.
type Report struct {
	ContractName     string      `json:"contractName"`
	Chain            string      `json:"chain"`
	Vulnerabilities  []Finding   `json:"vulnerabilities"`
	OverallScore     int         `json:"overallScore"`
	RiskLevel        RiskLevel   `json:"riskLevel"`
	Summary          string      `json:"summary"`
	Recommendations  []string    `json:"recommendations"`
	GasOptimizations []GasNote   `json:"gasOptimizations"`
	CodeQuality      CodeQuality `json:"codeQuality"`
	Metadata         Metadata    `json:"metadata"`
}

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// CountSeverities tallies findings by severity.
func CountSeverities(findings []Finding) SeverityCounts {
	var c SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		}
		c.Total++
	}
	return c
}
