package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appanalysis "github.com/euii-ii/NovaGuard-sub005/internal/application/analysis"
	appaudit "github.com/euii-ii/NovaGuard-sub005/internal/application/audit"
	domain "github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
	auditdom "github.com/euii-ii/NovaGuard-sub005/internal/domain/audit"
	"github.com/euii-ii/NovaGuard-sub005/internal/middleware"
)

type Router struct {
	analysisSvc *appanalysis.Service
	auditSvc    *appaudit.Service
	metrics     *middleware.Metrics
}

// NewRouter mounts the boundary surface. Request routing and shape
// validation only; all semantic validation lives in the services.
func NewRouter(analysisSvc *appanalysis.Service, auditSvc *appaudit.Service, metrics *middleware.Metrics, apiKey string) http.Handler {
	r := &Router{analysisSvc: analysisSvc, auditSvc: auditSvc, metrics: metrics}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(metrics.Middleware)
	mux.Use(middleware.RateLimitMiddleware(60, 10))
	mux.Use(middleware.APIKeyMiddleware(apiKey))

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"ledger": middleware.HealthCheckerFunc(func(ctx context.Context) error {
			if auditSvc == nil {
				return nil
			}
			_, err := auditSvc.Count(ctx, auditdom.QueryFilter{Limit: 1})
			return err
		}),
	}))
	mux.Get("/metrics", metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/agents", r.wrap(r.handleAgents))
		rt.Get("/audits", r.wrap(r.requireLedger(r.handleAuditList)))
		rt.Get("/audits/stats", r.wrap(r.requireLedger(r.handleAuditStats)))
		rt.Get("/audits/export", r.wrap(r.requireLedger(r.handleAuditExport)))
		rt.Post("/audits/verify", r.wrap(r.requireLedger(r.handleAuditVerify)))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// requireLedger rejects audit routes when the ledger is disabled by config.
func (r *Router) requireLedger(h handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		if r.auditSvc == nil {
			http.Error(w, "audit ledger is disabled", http.StatusServiceUnavailable)
			return nil
		}
		return h(w, req)
	}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error":  verr.Error(),
					"code":   verr.Code,
					"agents": verr.Agents,
				})
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				http.Error(w, "analysis timed out", http.StatusGatewayTimeout)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body domain.Request
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return nil
	}
	if body.ContractCode == "" {
		http.Error(w, "contractCode is required", http.StatusBadRequest)
		return nil
	}

	r.metrics.IncrementAnalyses()
	report, err := r.analysisSvc.Analyze(req.Context(), &body)
	if err != nil {
		r.metrics.IncrementAnalysesFailed()
		return err
	}
	if report.Metadata.FromCache {
		r.metrics.IncrementCacheHits()
	}
	if report.Metadata.Error {
		r.metrics.IncrementAnalysesFailed()
	}
	return writeJSON(w, http.StatusOK, report)
}

// GET /v1/agents
func (r *Router) handleAgents(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"agents": r.analysisSvc.SupportedAgents(),
	})
}

// GET /v1/audits?from=&to=&status=&risk=&contract=&offset=&limit=
func (r *Router) handleAuditList(w http.ResponseWriter, req *http.Request) error {
	f, err := parseFilter(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	entries, err := r.auditSvc.Query(req.Context(), f)
	if err != nil {
		return err
	}
	total, err := r.auditSvc.Count(req.Context(), f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"data":       entries,
		"totalItems": total,
		"offset":     f.Offset,
		"limit":      f.Limit,
	})
}

// GET /v1/audits/stats
func (r *Router) handleAuditStats(w http.ResponseWriter, req *http.Request) error {
	stats, err := r.auditSvc.Statistics(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, stats)
}

// GET /v1/audits/export
func (r *Router) handleAuditExport(w http.ResponseWriter, req *http.Request) error {
	env, err := r.auditSvc.Export(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, env)
}

// POST /v1/audits/verify
func (r *Router) handleAuditVerify(w http.ResponseWriter, req *http.Request) error {
	report, err := r.auditSvc.VerifyIntegrity(req.Context())
	if err != nil {
		return err
	}
	status := http.StatusOK
	if !report.OK() {
		// Integrity violations are data, not transport errors, but flag
		// them loudly enough for dumb monitors.
		status = http.StatusConflict
	}
	return writeJSON(w, status, report)
}

func parseFilter(req *http.Request) (auditdom.QueryFilter, error) {
	q := req.URL.Query()
	var f auditdom.QueryFilter

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("from must be RFC3339")
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("to must be RFC3339")
		}
		f.To = t
	}
	f.Status = auditdom.Status(q.Get("status"))
	f.RiskLevel = domain.RiskLevel(q.Get("risk"))
	f.ContractName = q.Get("contract")
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
