package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/stagegate/internal/http/helpers"
)

// WithClientIP resuelve la IP una sola vez por request; logs y rate limit la
// leen con helpers.ClientIP.
func WithClientIP(trust helpers.ProxyTrust) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := helpers.WithClientIP(r.Context(), trust.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
