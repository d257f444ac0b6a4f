package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLen es el mínimo aceptado para la clave HMAC.
const MinSecretLen = 32

var (
	ErrWeakSecret  = errors.New("jwt: signing secret too short")
	ErrInvalidType = errors.New("jwt: invalid token type")
)

// wireClaims es la forma serializada: typ + pld junto a los registered claims.
type wireClaims struct {
	Type    TokenType         `json:"typ"`
	Payload map[string]string `json:"pld,omitempty"`
	jwtv5.RegisteredClaims
}

// Signer emite y valida tokens de etapa firmados con HS256.
type Signer struct {
	secret []byte
	iss    string
	now    func() time.Time
}

func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	k := make([]byte, len(secret))
	copy(k, secret)
	return &Signer{secret: k, iss: issuer, now: time.Now}, nil
}

// WithClock devuelve una copia que usa now como reloj (tests).
func (s *Signer) WithClock(now func() time.Time) *Signer {
	cp := *s
	cp.now = now
	return &cp
}

// Issue firma {typ, sub, pld, iat, exp, jti, iss}. Un ttl <= 0 produce un token
// que ya no valida. Los errores son de serialización, nunca de input.
func (s *Signer) Issue(typ TokenType, subject string, payload map[string]string, ttl time.Duration) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	now := s.now().UTC()
	var pld map[string]string
	if len(payload) > 0 {
		pld = make(map[string]string, len(payload))
		for k, v := range payload {
			pld[k] = v
		}
	}
	claims := wireClaims{
		Type:    typ,
		Payload: pld,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    s.iss,
			Subject:   subject,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}
