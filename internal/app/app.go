// Package app arma el grafo de dependencias a partir de config.Config:
// stores, cache, firmador, mailer, servicios, controllers y router.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/stagegate/internal/cache"
	"github.com/dropDatabas3/stagegate/internal/config"
	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	"github.com/dropDatabas3/stagegate/internal/email"
	"github.com/dropDatabas3/stagegate/internal/flowstore"
	authctrl "github.com/dropDatabas3/stagegate/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/stagegate/internal/http/controllers/health"
	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	"github.com/dropDatabas3/stagegate/internal/http/router"
	authsvc "github.com/dropDatabas3/stagegate/internal/http/services/auth"
	healthsvc "github.com/dropDatabas3/stagegate/internal/http/services/health"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/metrics"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
	"github.com/dropDatabas3/stagegate/internal/rate"
	"github.com/dropDatabas3/stagegate/internal/security/otp"
	"github.com/dropDatabas3/stagegate/internal/security/password"
	"github.com/dropDatabas3/stagegate/internal/session"
	"github.com/dropDatabas3/stagegate/internal/store/memory"
	"github.com/dropDatabas3/stagegate/internal/store/pg"
)

// Options permite reemplazar piezas en tests. Los campos nil usan lo que
// indica la config.
type Options struct {
	Version string

	Cache  cache.Client
	Users  repository.UserRepository
	Sender email.Sender

	PasswordParams *password.Params
	Now            func() time.Time
}

// App es la aplicación cableada.
type App struct {
	Handler http.Handler
	Metrics *metrics.Metrics
	Signer  *jwt.Signer
	Users   repository.UserRepository
	Cache   cache.Client

	closers []func() error
}

// New construye la aplicación. Ante error libera lo que ya haya abierto.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	log := logger.L().With(logger.Layer("app"))
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// 1. Cache efímero
	a.Cache = opts.Cache
	if a.Cache == nil {
		a.Cache, err = cache.New(cache.Config{
			Driver:          cfg.Cache.Kind,
			Addr:            cfg.Cache.Redis.Addr,
			Password:        cfg.Cache.Redis.Password,
			DB:              cfg.Cache.Redis.DB,
			Prefix:          cfg.Cache.Prefix,
			CleanupInterval: cfg.Cache.Memory.CleanupInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("app: cache: %w", err)
		}
		a.closers = append(a.closers, a.Cache.Close)
	}

	// 2. Store de usuarios
	var pgStore *pg.Store
	a.Users = opts.Users
	if a.Users == nil {
		switch cfg.Storage.Driver {
		case "postgres":
			pgStore, err = pg.New(ctx, cfg.Storage.DSN, cfg.Storage.MaxConns)
			if err != nil {
				return nil, fmt.Errorf("app: postgres: %w", err)
			}
			a.closers = append(a.closers, func() error { pgStore.Close(); return nil })
			a.Users = pgStore.Users()
		default:
			a.Users = memory.NewUserStore()
		}
	}

	// 3. Métricas
	a.Metrics, err = metrics.New()
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	poolFn := func() *pgxpool.Pool { return nil }
	if pgStore != nil {
		poolFn = pgStore.Pool
	}
	if err = a.Metrics.Register(metrics.NewBackendCollector(poolFn, a.Cache)); err != nil {
		return nil, fmt.Errorf("app: metrics collector: %w", err)
	}

	// 4. Tokens, OTP y contraseñas
	a.Signer, err = jwt.NewSigner([]byte(cfg.Tokens.Secret), cfg.Tokens.Issuer)
	if err != nil {
		return nil, fmt.Errorf("app: signer: %w", err)
	}
	if opts.Now != nil {
		a.Signer = a.Signer.WithClock(opts.Now)
	}
	blacklist, err := password.LoadBlacklist(cfg.Security.PasswordBlacklistPath)
	if err != nil {
		return nil, fmt.Errorf("app: blacklist: %w", err)
	}
	settings := settingsFrom(cfg, password.DefaultPolicy(blacklist))
	if opts.PasswordParams != nil {
		settings.PasswordParams = *opts.PasswordParams
	}

	// 5. Email
	sender := opts.Sender
	if sender == nil {
		sender = newSender(cfg, log)
	}
	mailer, err := email.NewOTPMailer(sender, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("app: mailer: %w", err)
	}

	// 6. Sesiones
	issuer := session.NewIssuer(a.Signer, a.Cache, session.Settings{AccessTTL: cfg.Session.AccessTTL}, a.Metrics)
	guard := session.NewGuard(a.Signer, issuer, a.Users)

	// 7. Servicios y controllers
	deps := authsvc.Deps{
		Users:    a.Users,
		Flows:    flowstore.New(a.Cache),
		Signer:   a.Signer,
		OTP:      otp.NewHasher(cfg.OTPKey()),
		Sessions: issuer,
		Mailer:   mailer,
		Metrics:  a.Metrics,
		Settings: settings,
		Now:      opts.Now,
	}
	controllers := authctrl.NewControllers(authctrl.Services{
		Signup:   authsvc.NewSignupService(deps),
		Login:    authsvc.NewLoginService(deps),
		Recovery: authsvc.NewRecoveryService(deps),
		Account:  authsvc.NewAccountService(deps),
	}, helpers.CookieConfig{
		Domain:   cfg.Cookies.Domain,
		SameSite: cfg.Cookies.SameSite,
		Secure:   cfg.Cookies.Secure,
	})

	components := map[string]healthsvc.Pinger{"cache": a.Cache}
	if pgStore != nil {
		components["postgres"] = pgStore
	}
	health := healthctrl.NewHealthController(healthsvc.NewHealthService(healthsvc.Deps{
		Components: components,
		Version:    opts.Version,
	}))

	// 8. Router
	proxies, err := helpers.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("app: trusted proxies: %w", err)
	}
	rd := router.Deps{
		Auth:               controllers,
		Health:             health,
		Guard:              guard,
		UserIDHeader:       cfg.Session.UserIDHeader,
		Tokens:             a.Signer,
		Proxies:            proxies,
		AppAPIKey:          cfg.Security.AppAPIKey,
		AccountCreationKey: cfg.Security.AccountCreationKey,
		Rates:              ratesFrom(cfg),
		CORSOrigins:        cfg.Server.CORSOrigins,
	}
	if cfg.Metrics.Enabled {
		rd.Metrics = a.Metrics
		rd.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Rate.Enabled {
		rd.Limiter = newLimiter(a.Cache, cfg.Cache.Prefix)
	}
	a.Handler = router.New(rd)

	log.Info("app wired",
		logger.String("cache", cfg.Cache.Kind),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("email", cfg.Email.Sender),
		zap.Bool("rate_limit", cfg.Rate.Enabled),
		zap.Bool("metrics", cfg.Metrics.Enabled),
	)
	return a, nil
}

// Close libera recursos en orden inverso al de apertura.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func settingsFrom(cfg *config.Config, policy password.Policy) authsvc.Settings {
	return authsvc.Settings{
		Signup: authsvc.FlowSettings{
			OTPTTL:     cfg.Signup.OTPTTL,
			SessionTTL: cfg.Signup.SessionTTL,
			MaxResends: cfg.Signup.MaxResends,
		},
		SignupCooldown: cfg.Signup.Cooldown,
		Recovery: authsvc.FlowSettings{
			OTPTTL:     cfg.Recovery.OTPTTL,
			SessionTTL: cfg.Recovery.SessionTTL,
			MaxResends: cfg.Recovery.MaxResends,
		},
		ResetTTL:       cfg.Recovery.ResetTTL,
		PasswordParams: password.Default,
		PasswordPolicy: policy,
	}
}

func ratesFrom(cfg *config.Config) router.RateRules {
	rule := func(w config.RateWindow) router.RateRule {
		return router.RateRule{Limit: w.Limit, Window: w.Window}
	}
	return router.RateRules{
		Signup:   rule(cfg.Rate.Signup),
		Verify:   rule(cfg.Rate.Verify),
		Resend:   rule(cfg.Rate.Resend),
		Login:    rule(cfg.Rate.Login),
		Recovery: rule(cfg.Rate.Recovery),
		Account:  rule(cfg.Rate.Account),
	}
}

func newSender(cfg *config.Config, log *zap.Logger) email.Sender {
	if cfg.Email.Sender == "smtp" {
		return email.NewSMTPSender(email.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			From:               cfg.SMTP.From,
			TLSMode:            cfg.SMTP.TLS,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		})
	}
	return email.NewLogSender(log.Named("email"))
}

// redisBacked lo implementa el cliente redis del cache; el limiter comparte
// la conexión.
type redisBacked interface {
	Redis() *redis.Client
}

// newLimiter usa redis si el cache lo es, para que la ventana sea compartida
// entre réplicas. Con cache en memoria la ventana es por proceso.
func newLimiter(c cache.Client, prefix string) rate.Limiter {
	if rb, ok := c.(redisBacked); ok {
		return rate.NewRedisLimiter(rb.Redis(), prefix)
	}
	return rate.NewMemoryLimiter()
}
