package helpers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/stagegate/internal/jwt"
)

// Nombres de cookie por tipo de token.
const (
	CookieSignupOTP       = "sot"
	CookieSignupSession   = "srt"
	CookieAccess          = "at"
	CookieLoginSession    = "lst"
	CookieRecoveryOTP     = "prot"
	CookieRecoverySession = "prrt"
	CookieRecoveryReset   = "prnpt"
)

var cookieNames = map[jwt.TokenType]string{
	jwt.TypeSignupOTP:       CookieSignupOTP,
	jwt.TypeSignupSession:   CookieSignupSession,
	jwt.TypeLogin:           CookieAccess,
	jwt.TypeLoginSession:    CookieLoginSession,
	jwt.TypeRecoveryOTP:     CookieRecoveryOTP,
	jwt.TypeRecoverySession: CookieRecoverySession,
	jwt.TypeRecoveryReset:   CookieRecoveryReset,
}

// CookieName devuelve "" para tipos que no viajan en cookie (IDENTITY).
func CookieName(t jwt.TokenType) string { return cookieNames[t] }

// CookieConfig son los atributos comunes a todas las cookies.
type CookieConfig struct {
	Domain   string
	SameSite string
	Secure   bool
}

func ParseSameSite(s string) http.SameSite {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// httpOnly: el marcador de sesión es el único legible por el cliente.
func httpOnly(name string) bool { return name != CookieLoginSession }

func BuildCookie(name, value string, cfg CookieConfig, expires time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly(name),
		Secure:   cfg.Secure,
		SameSite: ParseSameSite(cfg.SameSite),
	}
	if strings.TrimSpace(cfg.Domain) != "" {
		ck.Domain = cfg.Domain
	}
	if ttl := time.Until(expires); ttl > 0 {
		ck.Expires = expires.UTC()
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}

func BuildDeletionCookie(name string, cfg CookieConfig) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: httpOnly(name),
		Secure:   cfg.Secure,
		SameSite: ParseSameSite(cfg.SameSite),
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
	if strings.TrimSpace(cfg.Domain) != "" {
		ck.Domain = cfg.Domain
	}
	return ck
}

// ReadCookie devuelve el valor de la cookie del tipo t, o "".
func ReadCookie(r *http.Request, t jwt.TokenType) string {
	name := CookieName(t)
	if name == "" {
		return ""
	}
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(ck.Value)
}
