// Package otp genera y compara códigos de un solo uso de 6 dígitos.
// Sólo el hash HMAC del código se persiste en el flujo.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
)

const Digits = 6

var space = big.NewInt(1_000_000)

// Generate devuelve un código uniforme en [000000, 999999].
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, space)
	if err != nil {
		return "", fmt.Errorf("otp: rand: %w", err)
	}
	return fmt.Sprintf("%0*d", Digits, n.Int64()), nil
}

// Hasher hashea códigos con HMAC-SHA256 bajo una clave del servidor.
type Hasher struct {
	key []byte
}

func NewHasher(key []byte) *Hasher {
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}
}

func (h *Hasher) Hash(code string) string {
	m := hmac.New(sha256.New, h.key)
	m.Write([]byte(code))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

// Compare devuelve true sólo si submitted es un código bien formado cuyo hash
// coincide con hashed.
func (h *Hasher) Compare(submitted, hashed string) bool {
	if !WellFormed(submitted) || hashed == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(h.Hash(submitted)), []byte(hashed)) == 1
}

// WellFormed: exactamente 6 dígitos ASCII.
func WellFormed(code string) bool {
	if len(code) != Digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
