package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dropDatabas3/stagegate/internal/http/errors"
)

const (
	HeaderAppAPIKey          = "X-App-Api-Key"
	HeaderAccountCreationKey = "X-Account-Creation-Key"
)

func keyMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// RequireHeaderKey exige que header traiga exactamente key. Con key vacía el
// middleware no hace nada (gate deshabilitado).
func RequireHeaderKey(header, key string) Middleware {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !keyMatches(strings.TrimSpace(r.Header.Get(header)), key) {
				errors.WriteError(w, errors.ErrInvalidAPIKey)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAppKey protege todas las rutas /auth con la clave de la aplicación.
func RequireAppKey(key string) Middleware { return RequireHeaderKey(HeaderAppAPIKey, key) }

// RequireAccountCreationKey protege la verificación de signup.
func RequireAccountCreationKey(key string) Middleware {
	return RequireHeaderKey(HeaderAccountCreationKey, key)
}
