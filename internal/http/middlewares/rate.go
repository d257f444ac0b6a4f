package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/stagegate/internal/http/errors"
	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/metrics"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
	"github.com/dropDatabas3/stagegate/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPPathRateKey separa los límites por endpoint sin leer el body.
func IPPathRateKey(r *http.Request) string {
	return helpers.ClientIP(r) + "|" + r.URL.Path
}

// StageValidator valida un token de etapa; lo implementa *jwt.Signer.
type StageValidator interface {
	ValidateType(raw string, typ jwt.TokenType) (jwt.Claims, bool)
}

// FlowRateKey cuenta por flow id, tomado del token de sesión del flujo ya
// validado. Así los intentos contra un mismo código comparten contador aunque
// el cliente cambie de IP. Sin token válido el request no puede verificar nada
// y cae al contador por IP.
func FlowRateKey(v StageValidator, sessType jwt.TokenType) RateKeyFunc {
	return func(r *http.Request) string {
		if v != nil {
			if c, ok := v.ValidateType(helpers.ReadCookie(r, sessType), sessType); ok && c.FlowID() != "" {
				return "flow|" + c.FlowID()
			}
		}
		return IPPathRateKey(r)
	}
}

// RateLimitConfig configura un bucket de rate limiting.
type RateLimitConfig struct {
	Limiter rate.Limiter
	Bucket  string
	Limit   int
	Window  time.Duration
	KeyFunc RateKeyFunc
	Metrics *metrics.Metrics
}

// WithRateLimit rechaza con 429 cuando el bucket se agota. Si el limiter falla
// el request pasa (fail-open).
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil || cfg.Limit <= 0 || cfg.Window <= 0 {
		return nil
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPPathRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.Bucket + "|" + cfg.KeyFunc(r)
			res, err := cfg.Limiter.Allow(r.Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				logger.From(r.Context()).Warn("rate_limit_error", logger.String("bucket", cfg.Bucket), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if res.WindowTTL > 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.WindowTTL).Unix(), 10))
			}
			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				cfg.Metrics.RateLimited(cfg.Bucket)
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
