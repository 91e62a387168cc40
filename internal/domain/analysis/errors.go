package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAgentTimeout indicates an agent task exceeded its deadline. Not retried.
var ErrAgentTimeout = errors.New("agent timeout")

// ErrAggregation indicates the aggregation step itself failed. Fatal for the
// current request only.
var ErrAggregation = errors.New("aggregation failed")

// ValidationError codes
const (
	CodeInvalidAgent  = "invalid_agent"
	CodeTooManyAgents = "too_many_agents"
)

// ValidationError rejects a request before any agent is dispatched.
// Agents carries the offending ids: unknown ids for invalid_agent, the
// excess ids beyond the configured maximum for too_many_agents.
type ValidationError struct {
	Code   string
	Agents []string
}

func (e *ValidationError) Error() string {
	switch e.Code {
	case CodeTooManyAgents:
		return fmt.Sprintf("too many agents requested, excess: %s", strings.Join(e.Agents, ", "))
	case CodeInvalidAgent:
		return fmt.Sprintf("unknown agent ids: %s", strings.Join(e.Agents, ", "))
	}
	return "invalid request"
}

// ExecutionError wraps a failed inference/analyzer call. Transient errors
// are retried up to the configured budget; validation-class ones are not.
type ExecutionError struct {
	AgentID   string
	Transient bool
	Cause     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("agent %s execution failed: %v", e.AgentID, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Transient
	}
	return false
}
