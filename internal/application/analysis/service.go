package analysis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/euii-ii/NovaGuard-sub005/internal/application"
	domain "github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
)

// State of one request in the orchestrator's state machine.
type State string

const (
	StateReceived      State = "received"
	StatePreprocessing State = "preprocessing"
	StateAwaitingCache State = "awaiting_cache"
	StateDispatching   State = "dispatching"
	StateAggregating   State = "aggregating"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// AuditSink receives every finished report, success or total failure.
// Best-effort: the orchestrator never blocks on it and its errors never
// reach the analysis caller.
type AuditSink interface {
	Enqueue(report *domain.Report)
}

// Options is the orchestrator's tuning surface.
type Options struct {
	DefaultAgents       []string
	MaxConcurrentAgents int
	Timeout             time.Duration
}

// Service is the coordinator: validates the agent set, drives
// preprocessing, dispatches to the pool, aggregates, applies the cache,
// and hands the finished report to the audit sink.
//
// All state is owned here and passed explicitly; safe for concurrent use.
type Service struct {
	Registry   map[string]domain.Analyzer
	Pre        domain.Preprocessor
	Pool       *Pool
	Cache      *Cache
	Aggregator *Aggregator
	Audit      AuditSink
	Clock      application.Clock
	Opts       Options

	order   []string // registry iteration order for stable validation output
	weights map[string]int
}

func NewService(analyzers []domain.Analyzer, pre domain.Preprocessor, pool *Pool, cache *Cache, agg *Aggregator, sink AuditSink, clock application.Clock, opts Options) *Service {
	if clock == nil {
		clock = application.SystemClock{}
	}
	s := &Service{
		Registry:   make(map[string]domain.Analyzer, len(analyzers)),
		Pre:        pre,
		Pool:       pool,
		Cache:      cache,
		Aggregator: agg,
		Audit:      sink,
		Clock:      clock,
		Opts:       opts,
		weights:    make(map[string]int, len(analyzers)),
	}
	for _, a := range analyzers {
		s.Registry[a.ID()] = a
		s.order = append(s.order, a.ID())
		s.weights[a.ID()] = a.Weight()
	}
	return s
}

// Analyze runs one request end to end. Callers always get a structurally
// complete report unless the request itself is invalid; total agent failure
// is reported through metadata.error, not a different shape.
func (s *Service) Analyze(ctx context.Context, req *domain.Request) (*domain.Report, error) {
	start := s.Clock.Now()

	agents, err := s.resolveAgents(req.Agents)
	if err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeQuick
	}

	fp := domain.Fingerprint(req.ContractCode, agents, mode)
	log.Printf("state=%s fingerprint=%.12s agents=%d mode=%s", StateAwaitingCache, fp, len(agents), mode)

	if cached, inflight := s.Cache.Get(fp); cached != nil {
		return fromCacheCopy(cached), nil
	} else if inflight != nil {
		return inflight.Wait(ctx)
	}

	handle, claimed := s.Cache.Register(fp)
	if !claimed {
		return handle.Wait(ctx)
	}

	report, err := s.compute(ctx, req, agents, mode, fp, start)
	if err != nil {
		s.Cache.Fail(fp, err)
		return nil, err
	}
	return report, nil
}

// compute is the cache-miss path; the caller owns the in-flight claim.
func (s *Service) compute(ctx context.Context, req *domain.Request, agents []string, mode domain.Mode, fp string, start time.Time) (*domain.Report, error) {
	log.Printf("state=%s fingerprint=%.12s", StatePreprocessing, fp)
	info, err := s.Pre.Preprocess(req.ContractCode, req.Chain)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	log.Printf("state=%s fingerprint=%.12s contract=%s complexity=%s", StateDispatching, fp, info.Name, info.Complexity)
	tasks := make([]domain.Analyzer, 0, len(agents))
	for _, id := range agents {
		tasks = append(tasks, s.Registry[id])
	}

	cctx, cancel := context.WithTimeout(ctx, s.Opts.Timeout)
	defer cancel()
	results := s.Pool.Run(cctx, tasks, info, mode)
	if err := ctx.Err(); err != nil {
		// Caller went away; stragglers' results are discarded with the claim.
		return nil, err
	}

	succeeded := make([]*domain.AgentResult, 0, len(results))
	for _, r := range results {
		if r != nil && !r.Failed {
			succeeded = append(succeeded, r)
		}
	}

	meta := domain.Metadata{
		AnalysisID: domain.AnalysisID(uuid.New().String()),
		Mode:       mode,
		AgentsUsed: agents,
		Partial:    len(succeeded) > 0 && len(succeeded) < len(results),
		Timestamp:  start,
	}

	var report *domain.Report
	if len(succeeded) == 0 {
		log.Printf("state=%s fingerprint=%.12s agents_failed=%d", StateFailed, fp, len(results))
		report = emptyFailedReport(info)
		meta.Error = true
	} else {
		log.Printf("state=%s fingerprint=%.12s succeeded=%d/%d", StateAggregating, fp, len(succeeded), len(results))
		report, err = s.Aggregator.Aggregate(succeeded, s.weights)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrAggregation, err)
		}
		report.ContractName = info.Name
		report.Chain = info.Chain
	}

	meta.ExecutionTime = s.Clock.Now().Sub(start).Milliseconds()
	report.Metadata = meta

	// Failed reports are released to joiners but not cached: the next
	// identical request should get a fresh attempt.
	s.Cache.Complete(fp, report, !meta.Error)

	if s.Audit != nil {
		s.Audit.Enqueue(report)
	}
	if !meta.Error {
		log.Printf("state=%s fingerprint=%.12s score=%d risk=%s findings=%d",
			StateCompleted, fp, report.OverallScore, report.RiskLevel, len(report.Vulnerabilities))
	}
	return report, nil
}

// resolveAgents dedupes the explicit list (order preserved), falls back to
// the default set when empty, rejects unknown ids, and rejects sets larger
// than the configured maximum naming the excess ids.
func (s *Service) resolveAgents(requested []string) ([]string, error) {
	src := requested
	if len(src) == 0 {
		src = s.Opts.DefaultAgents
	}

	seen := map[string]bool{}
	resolved := make([]string, 0, len(src))
	var unknown []string
	for _, id := range src {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := s.Registry[id]; !ok {
			unknown = append(unknown, id)
			continue
		}
		resolved = append(resolved, id)
	}
	if len(unknown) > 0 {
		return nil, &domain.ValidationError{Code: domain.CodeInvalidAgent, Agents: unknown}
	}
	if max := s.Opts.MaxConcurrentAgents; max > 0 && len(resolved) > max {
		return nil, &domain.ValidationError{Code: domain.CodeTooManyAgents, Agents: resolved[max:]}
	}
	return resolved, nil
}

// SupportedAgents lists the registry ids in registration order.
func (s *Service) SupportedAgents() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// fromCacheCopy returns the cached report with only the cache-hit flag
// differing. The body is shared; reports are immutable after aggregation.
func fromCacheCopy(r *domain.Report) *domain.Report {
	cp := *r
	cp.Metadata.FromCache = true
	return &cp
}

func emptyFailedReport(info *domain.ContractInfo) *domain.Report {
	return &domain.Report{
		ContractName:     info.Name,
		Chain:            info.Chain,
		Vulnerabilities:  []domain.Finding{},
		OverallScore:     0,
		RiskLevel:        domain.RiskHigh,
		Summary:          "Analysis failed: no agent produced a result.",
		Recommendations:  []string{},
		GasOptimizations: []domain.GasNote{},
		CodeQuality:      domain.CodeQuality{Issues: []string{}, Strengths: []string{}},
	}
}
