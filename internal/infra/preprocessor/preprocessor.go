package preprocessor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

var (
	rxContract = regexp.MustCompile(`(?m)^\s*(?:abstract\s+)?contract\s+([A-Za-z_][A-Za-z0-9_]*)`)
	rxLibrary  = regexp.MustCompile(`(?m)^\s*(?:library|interface)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	rxFunction = regexp.MustCompile(`(?m)\bfunction\s+[A-Za-z_][A-Za-z0-9_]*\s*\(`)
	rxBranch   = regexp.MustCompile(`\b(if|for|while|require|assert)\s*\(`)
)

// Preprocessor derives the read-only ContractInfo summary shared by all
// agents for one request. Pure text heuristics; no compilation.
type Preprocessor struct{}

func New() *Preprocessor { return &Preprocessor{} }

func (p *Preprocessor) Preprocess(source, chain string) (*analysis.ContractInfo, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("empty contract source")
	}

	name := "Unknown"
	if m := rxContract.FindStringSubmatch(source); m != nil {
		name = m[1]
	} else if m := rxLibrary.FindStringSubmatch(source); m != nil {
		name = m[1]
	}

	lines := strings.Count(source, "\n") + 1
	funcs := len(rxFunction.FindAllStringIndex(source, -1))
	branches := len(rxBranch.FindAllStringIndex(source, -1))

	return &analysis.ContractInfo{
		Name:          name,
		Chain:         chain,
		Source:        source,
		SizeBytes:     len(source),
		Lines:         lines,
		FunctionCount: funcs,
		Complexity:    complexityClass(lines, funcs, branches),
	}, nil
}

// complexityClass buckets a contract by rough structural weight.
func complexityClass(lines, funcs, branches int) string {
	score := lines/50 + funcs + branches/2
	switch {
	case score <= 10:
		return "simple"
	case score <= 40:
		return "moderate"
	default:
		return "complex"
	}
}
