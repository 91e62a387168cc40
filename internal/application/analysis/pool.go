package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	domain "github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

// Pool runs agent tasks with bounded concurrency. Every outcome, including
// a panicking analyzer, comes back as an AgentResult; nothing escapes the
// pool boundary.
type Pool struct {
	Workers int
	Retries int
	Backoff time.Duration
}

func NewPool(workers, retries int, backoff time.Duration) *Pool {
	if workers <= 0 {
		workers = 6
	}
	if retries < 0 {
		retries = 0
	}
	return &Pool{Workers: workers, Retries: retries, Backoff: backoff}
}

// Run dispatches every agent against the shared ContractInfo and blocks
// until all tasks settle. ctx carries the overall analysis deadline;
// cancellation is signaled to running tasks, whose late results are
// discarded by virtue of the uniform timeout outcome.
func (p *Pool) Run(ctx context.Context, agents []domain.Analyzer, info *domain.ContractInfo, mode domain.Mode) []*domain.AgentResult {
	results := make([]*domain.AgentResult, len(agents))
	sem := make(chan struct{}, p.Workers)
	done := make(chan int, len(agents))

	for i, a := range agents {
		go func(i int, a domain.Analyzer) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
				results[i] = p.runTask(ctx, a, info, mode)
			case <-ctx.Done():
				results[i] = failedResult(a.ID(), "timeout", domain.ErrAgentTimeout, 0, 0)
			}
			done <- i
		}(i, a)
	}
	for range agents {
		<-done
	}
	return results
}

// runTask executes one agent with the retry budget. Transient execution
// errors retry with backoff; timeouts and validation-class errors do not.
func (p *Pool) runTask(ctx context.Context, a domain.Analyzer, info *domain.ContractInfo, mode domain.Mode) *domain.AgentResult {
	start := time.Now()
	attempts := 0
	for {
		attempts++
		res, err := p.invoke(ctx, a, info, mode)
		elapsed := time.Since(start).Milliseconds()

		if err == nil {
			res.Attempts = attempts
			res.DurationMS = elapsed
			return res
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrAgentTimeout) {
			return failedResult(a.ID(), "timeout", domain.ErrAgentTimeout, attempts, elapsed)
		}
		if domain.IsTransient(err) && attempts <= p.Retries {
			log.Printf("agent=%s attempt=%d transient error, retrying: %v", a.ID(), attempts, err)
			select {
			case <-time.After(p.Backoff):
				continue
			case <-ctx.Done():
				return failedResult(a.ID(), "timeout", domain.ErrAgentTimeout, attempts, elapsed)
			}
		}
		return failedResult(a.ID(), "execution", err, attempts, elapsed)
	}
}

// invoke shields the pool from a panicking analyzer.
func (p *Pool) invoke(ctx context.Context, a domain.Analyzer, info *domain.ContractInfo, mode domain.Mode) (res *domain.AgentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &domain.ExecutionError{AgentID: a.ID(), Cause: fmt.Errorf("analyzer panic: %v", r)}
		}
	}()
	return a.Analyze(ctx, info, mode)
}

func failedResult(agentID, kind string, err error, attempts int, durationMS int64) *domain.AgentResult {
	return &domain.AgentResult{
		AgentID:     agentID,
		Failed:      true,
		FailureKind: kind,
		Err:         err,
		Attempts:    attempts,
		DurationMS:  durationMS,
	}
}
