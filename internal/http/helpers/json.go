package helpers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/stagegate/internal/http/errors"
)

// MaxBodyBytes limita el body de los endpoints de auth.
const MaxBodyBytes = 64 << 10

// ReadJSON decodifica de forma tolerante (campos desconocidos se ignoran).
// Un body vacío deja v en su valor cero: la validación de campos decide.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "application/json") {
		return httperrors.ErrBadRequest.WithDetail("Content-Type debe ser application/json")
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return httperrors.ErrBodyTooLarge
		}
		return httperrors.ErrInvalidJSON
	}
	return nil
}

// WriteJSON escribe una respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
