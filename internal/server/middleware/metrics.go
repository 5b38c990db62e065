package middleware

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/battleoracle/internal/metrics"
)

// Metrics records request counts and latency. A nil m disables recording.
func Metrics(m *metrics.OracleMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)
			next.ServeHTTP(rw, r)
			m.RecordHTTP(r.Method, rw.statusCode, time.Since(start))
		})
	}
}
