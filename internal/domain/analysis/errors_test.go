package analysis

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationErrorMessages(t *testing.T) {
	err := &ValidationError{Code: CodeInvalidAgent, Agents: []string{"bogus", "fake"}}
	if msg := err.Error(); !strings.Contains(msg, "bogus") || !strings.Contains(msg, "fake") {
		t.Fatalf("invalid_agent message should name the offending ids, got %q", msg)
	}

	err = &ValidationError{Code: CodeTooManyAgents, Agents: []string{"oracle", "mev"}}
	if msg := err.Error(); !strings.Contains(msg, "oracle") || !strings.Contains(msg, "mev") {
		t.Fatalf("too_many_agents message should name the excess ids, got %q", msg)
	}
}

func TestIsTransient(t *testing.T) {
	transient := &ExecutionError{AgentID: "security", Transient: true, Cause: errors.New("503")}
	if !IsTransient(transient) {
		t.Fatalf("transient execution error not recognized")
	}
	if !IsTransient(fmt.Errorf("wrapped: %w", transient)) {
		t.Fatalf("wrapped transient error not recognized")
	}
	if IsTransient(&ExecutionError{AgentID: "security", Cause: errors.New("bad schema")}) {
		t.Fatalf("non-transient execution error reported transient")
	}
	if IsTransient(errors.New("plain")) {
		t.Fatalf("plain error reported transient")
	}
}

func TestExecutionErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ExecutionError{AgentID: "gas", Transient: true, Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("ExecutionError should unwrap to its cause")
	}
}
