package jwt

import "time"

// TokenType identifica la etapa que autoriza un token. Cada endpoint acepta
// exactamente un tipo; cualquier otro se rechaza aunque la firma sea válida.
type TokenType string

const (
	TypeLogin           TokenType = "LOGIN"
	TypeLoginSession    TokenType = "LOGIN_SESSION"
	TypeIdentity        TokenType = "IDENTITY"
	TypeSignupOTP       TokenType = "SIGNUP_OTP"
	TypeSignupSession   TokenType = "SIGNUP_SESSION"
	TypeRecoveryOTP     TokenType = "RECOVERY_OTP"
	TypeRecoverySession TokenType = "RECOVERY_SESSION"
	TypeRecoveryReset   TokenType = "RECOVERY_RESET"
)

func (t TokenType) Valid() bool {
	switch t {
	case TypeLogin, TypeLoginSession, TypeIdentity,
		TypeSignupOTP, TypeSignupSession,
		TypeRecoveryOTP, TypeRecoverySession, TypeRecoveryReset:
		return true
	}
	return false
}

// Claves del payload.
const (
	PayloadFlowID    = "fid"
	PayloadSessionID = "sid"
)

// Claims es la vista validada de un token.
type Claims struct {
	Type      TokenType
	Subject   string
	Payload   map[string]string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

func (c Claims) FlowID() string    { return c.Payload[PayloadFlowID] }
func (c Claims) SessionID() string { return c.Payload[PayloadSessionID] }

// Remaining devuelve la vida útil restante respecto de now (0 si ya expiró).
func (c Claims) Remaining(now time.Time) time.Duration {
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
