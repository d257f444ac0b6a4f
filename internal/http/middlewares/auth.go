package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	"github.com/dropDatabas3/stagegate/internal/http/errors"
	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	"github.com/dropDatabas3/stagegate/internal/jwt"
)

// Authenticator es el guard de sesión.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken, claimedUserID string) (*repository.User, bool)
}

// AccessToken lee el access token de la cookie at, con fallback a
// Authorization: Bearer.
func AccessToken(r *http.Request) string {
	if v := helpers.ReadCookie(r, jwt.TypeLogin); v != "" {
		return v
	}
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) > 7 && strings.EqualFold(ah[:7], "bearer ") {
		return strings.TrimSpace(ah[7:])
	}
	return ""
}

// RequireAuth valida el access token contra el id que el cliente declara en
// userHeader y deja el usuario en el contexto. Cualquier falla es el mismo 401.
func RequireAuth(guard Authenticator, userHeader string) Middleware {
	if userHeader == "" {
		userHeader = "X-User-Id"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claimed := strings.TrimSpace(r.Header.Get(userHeader))
			u, ok := guard.Authenticate(r.Context(), AccessToken(r), claimed)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				errors.WriteError(w, errors.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
