package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

// fakeAnalyzer scripts one agent's behavior.
type fakeAnalyzer struct {
	id      string
	weight  int
	analyze func(ctx context.Context, info *domain.ContractInfo, mode domain.Mode) (*domain.AgentResult, error)
}

func (f *fakeAnalyzer) ID() string  { return f.id }
func (f *fakeAnalyzer) Weight() int { return f.weight }
func (f *fakeAnalyzer) Analyze(ctx context.Context, info *domain.ContractInfo, mode domain.Mode) (*domain.AgentResult, error) {
	return f.analyze(ctx, info, mode)
}

func okAnalyzer(id string, score int) *fakeAnalyzer {
	return &fakeAnalyzer{id: id, weight: 1, analyze: func(context.Context, *domain.ContractInfo, domain.Mode) (*domain.AgentResult, error) {
		return &domain.AgentResult{AgentID: id, Score: score}, nil
	}}
}

var testInfo = &domain.ContractInfo{Name: "Vault", Source: "contract Vault {}"}

func TestPoolRunAllSettle(t *testing.T) {
	p := NewPool(2, 0, 0)
	agents := []domain.Analyzer{okAnalyzer("a", 90), okAnalyzer("b", 80), okAnalyzer("c", 70)}

	results := p.Run(context.Background(), agents, testInfo, domain.ModeQuick)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r == nil || r.Failed {
			t.Fatalf("result %d should succeed: %+v", i, r)
		}
		if r.AgentID != agents[i].ID() {
			t.Fatalf("result %d out of position: got %s", i, r.AgentID)
		}
		if r.Attempts != 1 {
			t.Fatalf("success on first try should record 1 attempt, got %d", r.Attempts)
		}
	}
}

func TestPoolRetriesTransientErrors(t *testing.T) {
	var calls int32
	flaky := &fakeAnalyzer{id: "flaky", weight: 1, analyze: func(context.Context, *domain.ContractInfo, domain.Mode) (*domain.AgentResult, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, &domain.ExecutionError{AgentID: "flaky", Transient: true, Cause: errors.New("upstream 503")}
		}
		return &domain.AgentResult{AgentID: "flaky", Score: 85}, nil
	}}

	p := NewPool(1, 2, time.Millisecond)
	results := p.Run(context.Background(), []domain.Analyzer{flaky}, testInfo, domain.ModeQuick)
	r := results[0]
	if r.Failed {
		t.Fatalf("agent should succeed within the retry budget: %+v", r)
	}
	if r.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", r.Attempts)
	}
}

func TestPoolExhaustsRetryBudget(t *testing.T) {
	var calls int32
	broken := &fakeAnalyzer{id: "broken", weight: 1, analyze: func(context.Context, *domain.ContractInfo, domain.Mode) (*domain.AgentResult, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &domain.ExecutionError{AgentID: "broken", Transient: true, Cause: errors.New("upstream 503")}
	}}

	p := NewPool(1, 2, time.Millisecond)
	r := p.Run(context.Background(), []domain.Analyzer{broken}, testInfo, domain.ModeQuick)[0]
	if !r.Failed || r.FailureKind != "execution" {
		t.Fatalf("exhausted retries should report an execution failure: %+v", r)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3 (initial + 2 retries)", got)
	}
}

func TestPoolDoesNotRetryNonTransient(t *testing.T) {
	var calls int32
	bad := &fakeAnalyzer{id: "bad", weight: 1, analyze: func(context.Context, *domain.ContractInfo, domain.Mode) (*domain.AgentResult, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &domain.ExecutionError{AgentID: "bad", Cause: errors.New("schema error")}
	}}

	p := NewPool(1, 3, time.Millisecond)
	r := p.Run(context.Background(), []domain.Analyzer{bad}, testInfo, domain.ModeQuick)[0]
	if !r.Failed || r.FailureKind != "execution" {
		t.Fatalf("expected execution failure, got %+v", r)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("non-transient error must not retry, calls = %d", got)
	}
}

func TestPoolTimeoutIsNotRetried(t *testing.T) {
	var calls int32
	slow := &fakeAnalyzer{id: "slow", weight: 1, analyze: func(ctx context.Context, _ *domain.ContractInfo, _ domain.Mode) (*domain.AgentResult, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p := NewPool(1, 3, time.Millisecond)
	r := p.Run(ctx, []domain.Analyzer{slow}, testInfo, domain.ModeQuick)[0]
	if !r.Failed || r.FailureKind != "timeout" {
		t.Fatalf("expected timeout failure, got %+v", r)
	}
	if !errors.Is(r.Err, domain.ErrAgentTimeout) {
		t.Fatalf("timeout result should carry ErrAgentTimeout, got %v", r.Err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("timeouts must not retry, calls = %d", got)
	}
}

func TestPoolUnscheduledTasksTimeOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	block := func(ctx context.Context, _ *domain.ContractInfo, _ domain.Mode) (*domain.AgentResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	agents := []domain.Analyzer{
		&fakeAnalyzer{id: "a", weight: 1, analyze: block},
		&fakeAnalyzer{id: "b", weight: 1, analyze: block},
	}

	// One worker: whichever task is scheduled blocks until the deadline, the
	// other never gets a slot.
	p := NewPool(1, 0, 0)
	results := p.Run(ctx, agents, testInfo, domain.ModeQuick)
	for i, r := range results {
		if !r.Failed || r.FailureKind != "timeout" {
			t.Fatalf("result %d: deadline expiry should settle every task as timeout, got %+v", i, r)
		}
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	panicky := &fakeAnalyzer{id: "panicky", weight: 1, analyze: func(context.Context, *domain.ContractInfo, domain.Mode) (*domain.AgentResult, error) {
		panic("detector table out of range")
	}}

	p := NewPool(1, 0, 0)
	r := p.Run(context.Background(), []domain.Analyzer{panicky}, testInfo, domain.ModeQuick)[0]
	if !r.Failed || r.FailureKind != "execution" {
		t.Fatalf("panic should surface as an execution failure, got %+v", r)
	}
}
