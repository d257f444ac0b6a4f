package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/stagegate/internal/config"
	"github.com/dropDatabas3/stagegate/internal/email"
	mw "github.com/dropDatabas3/stagegate/internal/http/middlewares"
	"github.com/dropDatabas3/stagegate/internal/security/password"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testAppKey = "app-key"
)

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("STAGEGATE_TOKEN_SECRET", testSecret)
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Security.AppAPIKey = testAppKey
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *email.Outbox) {
	t.Helper()
	outbox := &email.Outbox{}
	fast := password.Fast
	a, err := New(context.Background(), cfg, Options{Version: "test", Sender: outbox, PasswordParams: &fast})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, outbox
}

// client guarda las cookies como lo haría un browser.
type client struct {
	t       *testing.T
	h       http.Handler
	jar     map[string]string
	headers map[string]string
}

func newClient(t *testing.T, h http.Handler) *client {
	return &client{t: t, h: h, jar: map[string]string{}, headers: map[string]string{mw.HeaderAppAPIKey: testAppKey}}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for n, v := range c.jar {
		req.AddCookie(&http.Cookie{Name: n, Value: v})
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.jar, ck.Name)
			continue
		}
		c.jar[ck.Name] = ck.Value
	}
	return rec
}

func (c *client) has(names ...string) bool {
	for _, n := range names {
		if _, ok := c.jar[n]; !ok {
			return false
		}
	}
	return true
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func lastCode(t *testing.T, o *email.Outbox, to string) string {
	t.Helper()
	msg, ok := o.Last(to)
	require.True(t, ok, "no mail for %s", to)
	m := codeRe.FindStringSubmatch(msg.Text)
	require.Len(t, m, 2)
	return m[1]
}

func signupBody(addr string) map[string]string {
	return map[string]string{
		"first_name": "Ana",
		"last_name":  "Gomez",
		"gender":     "F",
		"email":      addr,
		"password":   "secreta123",
	}
}

func TestApp_SignupCheckLogout(t *testing.T) {
	a, outbox := newTestApp(t, testConfig(t))
	c := newClient(t, a.Handler)
	const addr = "ana@example.com"

	rec := c.do(http.MethodPost, "/auth/signup", signupBody(addr))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, c.has("sot", "srt"))

	rec = c.do(http.MethodPost, "/auth/signup/verify", map[string]string{"otp": lastCode(t, outbox, addr)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	uid, _ := decode(t, rec)["uid"].(string)
	require.NotEmpty(t, uid)
	assert.False(t, c.has("sot") || c.has("srt"), "signup cookies must be cleared")
	require.True(t, c.has("at", "lst"))

	// Sin el header de usuario el guard rechaza.
	rec = c.do(http.MethodGet, "/auth/check", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	c.headers["X-User-Id"] = uid
	rec = c.do(http.MethodGet, "/auth/check", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, uid, decode(t, rec)["uid"])

	rec = c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, c.has("at") || c.has("lst"))

	rec = c.do(http.MethodGet, "/auth/check", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// La cuenta quedó creada: el mismo email entra por login.
	rec = c.do(http.MethodPost, "/auth/login", map[string]string{"email": addr, "password": "secreta123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, c.has("at", "lst"))
}

func TestApp_RecoveryResetsPassword(t *testing.T) {
	a, outbox := newTestApp(t, testConfig(t))
	c := newClient(t, a.Handler)
	const addr = "beto@example.com"

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/signup", signupBody(addr)).Code)
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/signup/verify",
		map[string]string{"otp": lastCode(t, outbox, addr)}).Code)

	rec := c.do(http.MethodPost, "/auth/recovery", map[string]string{"email": addr})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, c.has("prot", "prrt"))

	rec = c.do(http.MethodPost, "/auth/recovery/verify", map[string]string{"otp": lastCode(t, outbox, addr)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, c.has("prnpt"))
	assert.False(t, c.has("prot") || c.has("prrt"))

	rec = c.do(http.MethodPost, "/auth/recovery/reset", map[string]string{"password": "nuevaClave9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, c.has("prnpt"))

	// La sesión previa quedó revocada y la contraseña vieja ya no sirve.
	rec = c.do(http.MethodPost, "/auth/login", map[string]string{"email": addr, "password": "secreta123"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = c.do(http.MethodPost, "/auth/login", map[string]string{"email": addr, "password": "nuevaClave9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestApp_RecoveryUnknownEmail(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t))
	c := newClient(t, a.Handler)

	rec := c.do(http.MethodPost, "/auth/recovery", map[string]string{"email": "nadie@example.com"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	fields, _ := body["fields"].(map[string]any)
	require.Contains(t, fields, "email")
}

func TestApp_RequiresAppKey(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t))
	c := newClient(t, a.Handler)
	delete(c.headers, mw.HeaderAppAPIKey)

	rec := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "a@b.co", "password": "x"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApp_HealthAndMetrics(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t))
	c := newClient(t, a.Handler)

	rec := c.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "ready", body["status"])
	require.Equal(t, "test", body["version"])

	rec = c.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "stagegate_cache_up")
}

func TestApp_RedisCacheAndRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.Kind = "redis"
	cfg.Cache.Redis.Addr = mr.Addr()
	cfg.Rate.Enabled = true
	cfg.Rate.Login = config.RateWindow{Limit: 2, Window: time.Minute}

	a, outbox := newTestApp(t, cfg)
	c := newClient(t, a.Handler)
	const addr = "caro@example.com"

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/signup", signupBody(addr)).Code)
	require.NotEmpty(t, mr.Keys(), "flow record must live in redis")
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/signup/verify",
		map[string]string{"otp": lastCode(t, outbox, addr)}).Code)

	bad := map[string]string{"email": addr, "password": "incorrecta1"}
	require.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/auth/login", bad).Code)
	require.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/auth/login", bad).Code)
	rec := c.do(http.MethodPost, "/auth/login", bad)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestApp_VerifyLimitSurvivesForwardedForRotation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate.Enabled = true
	cfg.Rate.Verify = config.RateWindow{Limit: 3, Window: time.Minute}
	// httptest usa 192.0.2.1 como peer: el XFF se cree y cada intento cae en
	// otro bucket por IP.
	cfg.Server.TrustedProxies = []string{"192.0.2.0/24"}

	a, outbox := newTestApp(t, cfg)
	c := newClient(t, a.Handler)
	const addr = "rota@example.com"

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/signup", signupBody(addr)).Code)
	code := lastCode(t, outbox, addr)
	wrong := fmt.Sprintf("%06d", (mustAtoi(t, code)+1)%1000000)

	for i := 0; i < 3; i++ {
		c.headers["X-Forwarded-For"] = fmt.Sprintf("203.0.113.%d", i+1)
		rec := c.do(http.MethodPost, "/auth/signup/verify", map[string]string{"otp": wrong})
		require.NotEqual(t, http.StatusTooManyRequests, rec.Code, "attempt %d", i)
	}
	c.headers["X-Forwarded-For"] = "203.0.113.99"
	rec := c.do(http.MethodPost, "/auth/signup/verify", map[string]string{"otp": code})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}
