package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application counters. Constructed once at startup and
// passed explicitly; no package-level state.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AnalysesTotal      uint64
	AnalysesFailed     uint64
	CacheHits          uint64
	StartTime          time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

func (m *Metrics) IncrementAnalyses() {
	atomic.AddUint64(&m.AnalysesTotal, 1)
}

func (m *Metrics) IncrementAnalysesFailed() {
	atomic.AddUint64(&m.AnalysesFailed, 1)
}

func (m *Metrics) IncrementCacheHits() {
	atomic.AddUint64(&m.CacheHits, 1)
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&m.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&m.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&m.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&m.RequestsFailed),
		"analyses_total":       atomic.LoadUint64(&m.AnalysesTotal),
		"analyses_failed":      atomic.LoadUint64(&m.AnalysesFailed),
		"cache_hits":           atomic.LoadUint64(&m.CacheHits),
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       ms.Alloc,
			"total_alloc_bytes": ms.TotalAlloc,
			"sys_bytes":         ms.Sys,
			"num_gc":            ms.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&m.RequestsTotal, 1)
		atomic.AddUint64(&m.RequestsInProgress, 1)
		defer atomic.AddUint64(&m.RequestsInProgress, ^uint64(0))

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&m.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&m.RequestsFailed, 1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Snapshot())
}
