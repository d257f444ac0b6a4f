package jwt

import (
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Validate verifica firma, algoritmo, issuer y expiración (exp estrictamente
// futuro, sin leeway). Cualquier falla devuelve ok=false; nunca error.
// La decodificación base64 es estricta: alterar los bits de relleno del último
// carácter de un segmento también invalida el token.
func (s *Signer) Validate(raw string) (Claims, bool) {
	if raw == "" {
		return Claims{}, false
	}
	var wc wireClaims
	tok, err := jwtv5.ParseWithClaims(raw, &wc,
		func(t *jwtv5.Token) (any, error) { return s.secret, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithStrictDecoding(),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuer(s.iss),
		jwtv5.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid {
		return Claims{}, false
	}
	if !wc.Type.Valid() || wc.ExpiresAt == nil {
		return Claims{}, false
	}
	// exp debe ser estrictamente posterior a now
	if !s.now().Before(wc.ExpiresAt.Time) {
		return Claims{}, false
	}

	c := Claims{
		Type:      wc.Type,
		Subject:   wc.Subject,
		Payload:   wc.Payload,
		ExpiresAt: wc.ExpiresAt.Time,
		ID:        wc.ID,
	}
	if c.Payload == nil {
		c.Payload = map[string]string{}
	}
	if wc.IssuedAt != nil {
		c.IssuedAt = wc.IssuedAt.Time
	}
	return c, true
}

// ValidateType es Validate más el chequeo del tipo esperado.
func (s *Signer) ValidateType(raw string, typ TokenType) (Claims, bool) {
	c, ok := s.Validate(raw)
	if !ok || c.Type != typ {
		return Claims{}, false
	}
	return c, true
}

// Inspect decodifica sin verificar firma. Sólo para diagnóstico (CLI).
func Inspect(raw string) (Claims, error) {
	var wc wireClaims
	if _, _, err := jwtv5.NewParser().ParseUnverified(raw, &wc); err != nil {
		return Claims{}, err
	}
	c := Claims{Type: wc.Type, Subject: wc.Subject, Payload: wc.Payload, ID: wc.ID}
	if wc.IssuedAt != nil {
		c.IssuedAt = wc.IssuedAt.Time
	}
	if wc.ExpiresAt != nil {
		c.ExpiresAt = wc.ExpiresAt.Time
	}
	return c, nil
}
