package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SessionIDBytes es la entropía de un sid (256 bits).
const SessionIDBytes = 32

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewSessionID devuelve un sid para el par access token / marcador de sesión.
func NewSessionID() (string, error) {
	return GenerateOpaqueToken(SessionIDBytes)
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// EmailKey normaliza y hashea un email para usarlo como sufijo de clave en cache
// sin dejar PII en Redis.
func EmailKey(email string) string {
	return SHA256Base64URL(strings.ToLower(strings.TrimSpace(email)))
}
