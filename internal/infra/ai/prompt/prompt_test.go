package prompt

import (
	"strings"
	"testing"

	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

func TestForAgentPrompts(t *testing.T) {
	system, user := ForAgent("security", "Vault", "contract Vault {}")
	if !strings.Contains(system, "reentrancy") {
		t.Errorf("system prompt missing the agent focus: %q", system)
	}
	if !strings.Contains(user, "Vault") || !strings.Contains(user, "contract Vault {}") {
		t.Errorf("user prompt missing contract identity or source")
	}

	system, _ = ForAgent("unheard-of", "Vault", "x")
	if !strings.Contains(system, "general smart contract risks") {
		t.Errorf("unknown agent should get the generic focus")
	}
}

func TestForAgentTruncatesSource(t *testing.T) {
	big := strings.Repeat("a", maxSourceChars+1000)
	_, user := ForAgent("security", "Vault", big)
	if len(user) > maxSourceChars+100 {
		t.Fatalf("oversized source not truncated, user prompt is %d chars", len(user))
	}
}

func TestParseFindings(t *testing.T) {
	raw := `{"findings":[
		{"name":"stale oracle","category":"oracle","severity":"high","lineStart":12,"lineEnd":14,"description":"d","remediation":"r","confidence":0.8},
		{"name":"","category":"noise","severity":"low","confidence":0.9},
		{"name":"weird","category":"misc","severity":"catastrophic","lineStart":9,"lineEnd":3,"confidence":7.5}
	]}`
	out, err := ParseFindings("oracle", raw)
	if err != nil {
		t.Fatalf("ParseFindings: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("nameless entries should be dropped, got %d findings", len(out))
	}
	if out[0].AgentID != "oracle" {
		t.Errorf("findings must be attributed to the agent")
	}
	weird := out[1]
	if weird.Severity != analysis.SeverityLow {
		t.Errorf("unknown severity should clamp to low, got %s", weird.Severity)
	}
	if weird.Confidence != 0.5 {
		t.Errorf("out-of-range confidence should clamp to 0.5, got %v", weird.Confidence)
	}
	if weird.LineEnd != weird.LineStart {
		t.Errorf("inverted line range should collapse, got %d-%d", weird.LineStart, weird.LineEnd)
	}
}

func TestParseFindingsStripsFences(t *testing.T) {
	raw := "```json\n{\"findings\":[{\"name\":\"x\",\"category\":\"misc\",\"severity\":\"low\",\"confidence\":0.6}]}\n```"
	out, err := ParseFindings("security", raw)
	if err != nil {
		t.Fatalf("fenced JSON should parse: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d findings, want 1", len(out))
	}
}

func TestParseFindingsRejectsProse(t *testing.T) {
	if _, err := ParseFindings("security", "the contract looks fine to me"); err == nil {
		t.Fatalf("prose output should fail to parse")
	}
}
