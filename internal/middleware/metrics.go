package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores process-level request counters.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	StartTime          time.Time
}

// NewMetrics returns a fresh counter set; one per process, injected rather
// than kept as a package global.
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// Middleware counts requests and outcomes around the wrapped handler.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&m.RequestsTotal, 1)
		atomic.AddUint64(&m.RequestsInProgress, 1)
		defer atomic.AddUint64(&m.RequestsInProgress, ^uint64(0))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 500 {
			atomic.AddUint64(&m.RequestsFailed, 1)
		} else {
			atomic.AddUint64(&m.RequestsSuccess, 1)
		}
	})
}

// Handler exposes the counters plus runtime stats as JSON.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"requests_total":       atomic.LoadUint64(&m.RequestsTotal),
			"requests_in_progress": atomic.LoadUint64(&m.RequestsInProgress),
			"requests_success":     atomic.LoadUint64(&m.RequestsSuccess),
			"requests_failed":      atomic.LoadUint64(&m.RequestsFailed),
			"uptime_seconds":       int64(time.Since(m.StartTime).Seconds()),
			"goroutines":           runtime.NumGoroutine(),
			"heap_alloc_bytes":     ms.HeapAlloc,
		})
	}
}
