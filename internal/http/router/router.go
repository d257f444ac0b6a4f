// Package router arma las rutas /auth, /healthz y /metrics sobre chi.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/stagegate/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/stagegate/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/stagegate/internal/http/errors"
	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	mw "github.com/dropDatabas3/stagegate/internal/http/middlewares"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/metrics"
	"github.com/dropDatabas3/stagegate/internal/rate"
)

// RateRule es el límite de un bucket. Limit 0 lo deshabilita.
type RateRule struct {
	Limit  int
	Window time.Duration
}

// RateRules agrupa los buckets por tipo de endpoint.
type RateRules struct {
	Signup   RateRule
	Verify   RateRule
	Resend   RateRule
	Login    RateRule
	Recovery RateRule
	Account  RateRule
}

// Deps contiene todas las dependencias del router.
type Deps struct {
	Auth   *authctrl.Controllers
	Health *healthctrl.HealthController

	Guard        mw.Authenticator
	UserIDHeader string

	// Tokens valida los tokens de sesión de flujo para contar verify/resend
	// por flow id.
	Tokens mw.StageValidator

	// Proxies son los únicos peers cuyo X-Forwarded-For se cree.
	Proxies helpers.ProxyTrust

	// Claves opcionales; vacías deshabilitan el chequeo.
	AppAPIKey          string
	AccountCreationKey string

	Limiter rate.Limiter // nil deshabilita el rate limiting
	Rates   RateRules

	Metrics     *metrics.Metrics
	MetricsPath string

	CORSOrigins []string
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.Std(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithClientIP(d.Proxies),
		mw.WithMetrics(d.Metrics),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(d.CORSOrigins),
	)...)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
	}
	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, d.Metrics.Handler())
	}

	if d.Auth != nil {
		r.Route("/auth", func(r chi.Router) {
			r.Use(mw.Std(mw.WithNoStore(), mw.RequireAppKey(d.AppAPIKey))...)
			registerAuthRoutes(r, d)
		})
	}
	return r
}

func registerAuthRoutes(r chi.Router, d Deps) {
	c := d.Auth
	limitBy := func(bucket string, rule RateRule, key mw.RateKeyFunc) func(http.Handler) http.Handler {
		m := mw.WithRateLimit(mw.RateLimitConfig{
			Limiter: d.Limiter,
			Bucket:  bucket,
			Limit:   rule.Limit,
			Window:  rule.Window,
			KeyFunc: key,
			Metrics: d.Metrics,
		})
		if m == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return m
	}
	limit := func(bucket string, rule RateRule) func(http.Handler) http.Handler {
		return limitBy(bucket, rule, nil)
	}
	// verify y resend cuentan por IP y además por flujo: el código de 6
	// dígitos sólo se protege si cambiar de IP no reinicia el contador.
	perFlow := func(bucket string, rule RateRule, sessType jwt.TokenType) []func(http.Handler) http.Handler {
		return []func(http.Handler) http.Handler{
			limit(bucket, rule),
			limitBy(bucket+"_flow", rule, mw.FlowRateKey(d.Tokens, sessType)),
		}
	}

	// Signup
	r.With(limit("signup", d.Rates.Signup)).Post("/signup", c.Signup.Start)
	r.With(perFlow("resend", d.Rates.Resend, jwt.TypeSignupSession)...).Post("/signup/resend", c.Signup.Resend)
	r.With(append(mw.Std(mw.RequireAccountCreationKey(d.AccountCreationKey)),
		perFlow("verify", d.Rates.Verify, jwt.TypeSignupSession)...)...).
		Post("/signup/verify", c.Signup.Verify)

	// Login
	r.With(limit("login", d.Rates.Login)).Post("/login", c.Login.Login)

	// Recovery
	r.With(limit("recovery", d.Rates.Recovery)).Post("/recovery", c.Recovery.Start)
	r.With(perFlow("resend", d.Rates.Resend, jwt.TypeRecoverySession)...).Post("/recovery/resend", c.Recovery.Resend)
	r.With(perFlow("verify", d.Rates.Verify, jwt.TypeRecoverySession)...).Post("/recovery/verify", c.Recovery.Verify)
	r.With(limit("recovery", d.Rates.Recovery)).Post("/recovery/reset", c.Recovery.Reset)

	// Requieren sesión
	r.Group(func(r chi.Router) {
		r.Use(limit("account", d.Rates.Account), mw.RequireAuth(d.Guard, d.UserIDHeader))
		r.Get("/check", c.Account.Check)
		r.Post("/logout", c.Account.Logout)
		r.Post("/password", c.Account.ChangePassword)
	})
}
