package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// Orígenes con credenciales (las cookies viajan cross-site con SameSite=None).
		CORSOrigins []string `yaml:"cors_origins"`
		// IPs o CIDRs de los proxies cuyo X-Forwarded-For se cree. Vacío: se
		// usa siempre la IP del peer.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	// Storage es el store persistente de usuarios.
	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"storage"`

	// Cache respalda el Ephemeral Data Store, los marcadores de sesión y el rate limit.
	Cache struct {
		Kind   string `yaml:"kind"` // memory | redis
		Prefix string `yaml:"prefix"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Memory struct {
			CleanupInterval time.Duration `yaml:"cleanup_interval"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Tokens struct {
		Secret string `yaml:"secret"` // HMAC, >= 32 bytes
		Issuer string `yaml:"issuer"`
	} `yaml:"tokens"`

	Signup struct {
		OTPTTL     time.Duration `yaml:"otp_ttl"`
		SessionTTL time.Duration `yaml:"session_ttl"`
		Cooldown   time.Duration `yaml:"cooldown"`
		MaxResends int           `yaml:"max_resends"`
	} `yaml:"signup"`

	Recovery struct {
		OTPTTL     time.Duration `yaml:"otp_ttl"`
		SessionTTL time.Duration `yaml:"session_ttl"`
		ResetTTL   time.Duration `yaml:"reset_ttl"`
		MaxResends int           `yaml:"max_resends"`
	} `yaml:"recovery"`

	Session struct {
		AccessTTL    time.Duration `yaml:"access_ttl"`
		UserIDHeader string        `yaml:"user_id_header"`
	} `yaml:"session"`

	Cookies struct {
		Domain   string `yaml:"domain"`
		SameSite string `yaml:"samesite"`
		Secure   bool   `yaml:"secure"`
	} `yaml:"cookies"`

	Security struct {
		AppAPIKey             string `yaml:"app_api_key"`
		AccountCreationKey    string `yaml:"account_creation_key"`
		OTPKey                string `yaml:"otp_key"` // si vacío se usa tokens.secret
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
	} `yaml:"security"`

	Rate struct {
		Enabled  bool       `yaml:"enabled"`
		Signup   RateWindow `yaml:"signup"`
		Verify   RateWindow `yaml:"verify"`
		Resend   RateWindow `yaml:"resend"`
		Login    RateWindow `yaml:"login"`
		Recovery RateWindow `yaml:"recovery"`
		Account  RateWindow `yaml:"account"`
	} `yaml:"rate"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Email struct {
		Sender string `yaml:"sender"` // smtp | log
	} `yaml:"email"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// RateWindow es un límite fixed-window por endpoint.
type RateWindow struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// Load lee el YAML (si path no está vacío), aplica defaults y overrides de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		// Normalizar blacklist relativa al directorio del YAML
		if p := strings.TrimSpace(c.Security.PasswordBlacklistPath); p != "" && !filepath.IsAbs(p) {
			c.Security.PasswordBlacklistPath = filepath.Join(filepath.Dir(path), p)
		}
	} else {
		c.Cookies.Secure = true
		c.Rate.Enabled = true
		c.Metrics.Enabled = true
	}

	c.applyEnvOverrides()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "stagegate"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.MaxConns == 0 {
		c.Storage.MaxConns = 10
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "sg"
	}
	if c.Cache.Memory.CleanupInterval == 0 {
		c.Cache.Memory.CleanupInterval = time.Minute
	}
	if c.Tokens.Issuer == "" {
		c.Tokens.Issuer = "stagegate"
	}

	// TTLs de etapa: el OTP expira antes que la sesión del flujo.
	if c.Signup.OTPTTL == 0 {
		c.Signup.OTPTTL = 10 * time.Minute
	}
	if c.Signup.SessionTTL == 0 {
		c.Signup.SessionTTL = 30 * time.Minute
	}
	if c.Signup.Cooldown == 0 {
		c.Signup.Cooldown = 10 * time.Minute
	}
	if c.Signup.MaxResends == 0 {
		c.Signup.MaxResends = 5
	}
	if c.Recovery.OTPTTL == 0 {
		c.Recovery.OTPTTL = 10 * time.Minute
	}
	if c.Recovery.SessionTTL == 0 {
		c.Recovery.SessionTTL = 30 * time.Minute
	}
	if c.Recovery.ResetTTL == 0 {
		c.Recovery.ResetTTL = 10 * time.Minute
	}
	if c.Recovery.MaxResends == 0 {
		c.Recovery.MaxResends = 5
	}
	if c.Session.AccessTTL == 0 {
		c.Session.AccessTTL = 7 * 24 * time.Hour
	}
	if c.Session.UserIDHeader == "" {
		c.Session.UserIDHeader = "X-User-Id"
	}
	if c.Cookies.SameSite == "" {
		c.Cookies.SameSite = "None"
	}

	defaultWindow(&c.Rate.Signup, 5, 10*time.Minute)
	defaultWindow(&c.Rate.Verify, 10, 10*time.Minute)
	defaultWindow(&c.Rate.Resend, 3, 10*time.Minute)
	defaultWindow(&c.Rate.Login, 10, time.Minute)
	defaultWindow(&c.Rate.Recovery, 5, 10*time.Minute)
	defaultWindow(&c.Rate.Account, 60, time.Minute)

	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Email.Sender == "" {
		if c.SMTP.Host != "" {
			c.Email.Sender = "smtp"
		} else {
			c.Email.Sender = "log"
		}
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func defaultWindow(w *RateWindow, limit int, window time.Duration) {
	if w.Limit == 0 {
		w.Limit = limit
	}
	if w.Window == 0 {
		w.Window = window
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyEnvOverrides: pisa el YAML con variables STAGEGATE_*.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("STAGEGATE_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STAGEGATE_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("STAGEGATE_CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	if v, ok := getEnvStr("STAGEGATE_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = splitList(v)
	}
	if v, ok := getEnvStr("STAGEGATE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// STORAGE
	if v, ok := getEnvStr("STAGEGATE_STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STAGEGATE_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}

	// CACHE
	if v, ok := getEnvStr("STAGEGATE_CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STAGEGATE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("STAGEGATE_REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("STAGEGATE_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	// TOKENS
	if v, ok := getEnvStr("STAGEGATE_TOKEN_SECRET"); ok {
		c.Tokens.Secret = v
	}
	if v, ok := getEnvStr("STAGEGATE_TOKEN_ISSUER"); ok {
		c.Tokens.Issuer = v
	}
	if v, ok := getEnvDur("STAGEGATE_ACCESS_TTL"); ok {
		c.Session.AccessTTL = v
	}
	if v, ok := getEnvDur("STAGEGATE_OTP_TTL"); ok {
		c.Signup.OTPTTL = v
		c.Recovery.OTPTTL = v
	}

	// COOKIES
	if v, ok := getEnvStr("STAGEGATE_COOKIE_DOMAIN"); ok {
		c.Cookies.Domain = v
	}
	if v, ok := getEnvStr("STAGEGATE_COOKIE_SAMESITE"); ok {
		c.Cookies.SameSite = v
	}
	if v, ok := getEnvBool("STAGEGATE_COOKIE_SECURE"); ok {
		c.Cookies.Secure = v
	}

	// SECURITY
	if v, ok := getEnvStr("STAGEGATE_APP_API_KEY"); ok {
		c.Security.AppAPIKey = v
	}
	if v, ok := getEnvStr("STAGEGATE_ACCOUNT_CREATION_KEY"); ok {
		c.Security.AccountCreationKey = v
	}
	if v, ok := getEnvStr("STAGEGATE_OTP_KEY"); ok {
		c.Security.OTPKey = v
	}
	if v, ok := getEnvBool("STAGEGATE_RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v)
	}
}

// Validate chequea los valores críticos. Un error acá es un bug de configuración.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Tokens.Secret) < 32 {
		errs = append(errs, errors.New("tokens.secret must be at least 32 bytes"))
	}
	if c.Signup.OTPTTL >= c.Signup.SessionTTL {
		errs = append(errs, errors.New("signup.otp_ttl must be shorter than signup.session_ttl"))
	}
	if c.Recovery.OTPTTL >= c.Recovery.SessionTTL {
		errs = append(errs, errors.New("recovery.otp_ttl must be shorter than recovery.session_ttl"))
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.kind %q", c.Cache.Kind))
	}
	for _, p := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			errs = append(errs, fmt.Errorf("server.trusted_proxies: invalid entry %q", p))
		}
	}
	if c.Email.Sender == "smtp" && c.SMTP.Host == "" {
		errs = append(errs, errors.New("smtp.host is required when email.sender=smtp"))
	}
	if strings.EqualFold(c.App.Env, "prod") && c.Email.Sender == "log" {
		errs = append(errs, errors.New("email.sender=log is not allowed in prod"))
	}
	return errors.Join(errs...)
}

// OTPKey devuelve la clave HMAC para hashear OTPs.
func (c *Config) OTPKey() []byte {
	if c.Security.OTPKey != "" {
		return []byte(c.Security.OTPKey)
	}
	return []byte(c.Tokens.Secret)
}
