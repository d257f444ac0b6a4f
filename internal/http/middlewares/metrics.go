package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/stagegate/internal/metrics"
)

// WithMetrics registra requests, latencia e in-flight por método y path.
func WithMetrics(m *metrics.Metrics) Middleware {
	if m == nil {
		return nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := m.HTTPStart(r.Method, r.URL.Path)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			done(rec.status)
		})
	}
}
