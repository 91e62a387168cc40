package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker is anything whose liveness matters for readiness.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// HealthHandler reports service health plus per-dependency status.
func HealthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := map[string]string{}
		for name, c := range checks {
			if err := c.Check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				deps[name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
			"dependencies": deps,
			"time":         time.Now().UTC(),
		})
	}
}
