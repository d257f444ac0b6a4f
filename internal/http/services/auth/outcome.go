package auth

import (
	"time"

	"github.com/dropDatabas3/stagegate/internal/jwt"
)

// Outcome es el resultado de una etapa. Los rechazos esperables (input
// inválido, token vencido, credenciales) son outcomes, no errores; el error de
// retorno de los servicios queda para fallas de infraestructura.
type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeValidation         Outcome = "validation"
	OutcomeSessionExpired     Outcome = "session_expired"
	OutcomeConflict           Outcome = "conflict"
	OutcomeCooldown           Outcome = "cooldown"
	OutcomeTooManyResends     Outcome = "too_many_resends"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	OutcomeAccountNotSigned   Outcome = "account_not_signed"
	OutcomeAccountDisabled    Outcome = "account_disabled"
	OutcomeNoAccount          Outcome = "no_account"
)

// IssuedToken es un token que el transporte tiene que entregar al cliente.
type IssuedToken struct {
	Type      jwt.TokenType
	Value     string
	ExpiresAt time.Time
}

// Result describe qué pasó y qué tokens setear o limpiar. El controller
// traduce Type a cookie; el servicio no sabe de cookies.
type Result struct {
	Outcome Outcome
	Fields  map[string]string
	Issued  []IssuedToken
	Clear   []jwt.TokenType
	UserID  string
}

func (r Result) OK() bool { return r.Outcome == OutcomeOK }

// Token devuelve el token emitido de tipo t, si hay.
func (r Result) Token(t jwt.TokenType) (string, bool) {
	for _, it := range r.Issued {
		if it.Type == t {
			return it.Value, true
		}
	}
	return "", false
}

func fail(o Outcome, clear ...jwt.TokenType) Result {
	return Result{Outcome: o, Clear: clear}
}

func invalid(fields map[string]string) Result {
	return Result{Outcome: OutcomeValidation, Fields: fields}
}

func field(name, msg string) Result {
	return invalid(map[string]string{name: msg})
}

// StageTokens son los dos tokens que gatean resend y verify de un flujo.
type StageTokens struct {
	OTP     string
	Session string
}

var (
	signupCookies   = []jwt.TokenType{jwt.TypeSignupOTP, jwt.TypeSignupSession}
	recoveryCookies = []jwt.TokenType{jwt.TypeRecoveryOTP, jwt.TypeRecoverySession}
	sessionCookies  = []jwt.TokenType{jwt.TypeLogin, jwt.TypeLoginSession}
)
