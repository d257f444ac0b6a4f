// Package auth implementa las máquinas de estado de signup, login y recovery.
//
// Los servicios no conocen HTTP: reciben DTOs y tokens crudos, y devuelven un
// Result con el outcome y los tokens a emitir o limpiar.
package auth

import (
	"context"
	"time"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	"github.com/dropDatabas3/stagegate/internal/email"
	"github.com/dropDatabas3/stagegate/internal/flowstore"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/metrics"
	"github.com/dropDatabas3/stagegate/internal/security/otp"
	"github.com/dropDatabas3/stagegate/internal/security/password"
	"github.com/dropDatabas3/stagegate/internal/session"
)

// Flows es el store efímero de registros de flujo.
type Flows interface {
	Put(ctx context.Context, kind flowstore.Kind, flowID string, rec flowstore.Record, ttl time.Duration) error
	Get(ctx context.Context, kind flowstore.Kind, flowID string) (flowstore.Record, bool, error)
	Take(ctx context.Context, kind flowstore.Kind, flowID string) (flowstore.Record, bool, error)
	Delete(ctx context.Context, kind flowstore.Kind, flowID string) error
	Reserve(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Sessions emite y revoca sesiones.
type Sessions interface {
	Issue(ctx context.Context, userID string) (session.Tokens, error)
	Revoke(ctx context.Context, userID, marker string) error
	RevokeAll(ctx context.Context, userID string) error
}

// OTPSender entrega el código fuera de banda.
type OTPSender interface {
	SendOTP(ctx context.Context, p email.Purpose, to, name, code string, ttl time.Duration) error
}

// FlowSettings son los tiempos de un flujo con OTP.
type FlowSettings struct {
	OTPTTL     time.Duration
	SessionTTL time.Duration
	MaxResends int
}

// Settings es inmutable; se arma una vez desde config al arrancar.
type Settings struct {
	Signup         FlowSettings
	SignupCooldown time.Duration
	Recovery       FlowSettings
	ResetTTL       time.Duration
	PasswordParams password.Params
	PasswordPolicy password.Policy
}

// DefaultSettings son los valores de producción.
func DefaultSettings() Settings {
	return Settings{
		Signup:         FlowSettings{OTPTTL: 10 * time.Minute, SessionTTL: 30 * time.Minute, MaxResends: 5},
		SignupCooldown: 10 * time.Minute,
		Recovery:       FlowSettings{OTPTTL: 10 * time.Minute, SessionTTL: 30 * time.Minute, MaxResends: 5},
		ResetTTL:       10 * time.Minute,
		PasswordParams: password.Default,
		PasswordPolicy: password.DefaultPolicy(nil),
	}
}

// Deps contiene las dependencias compartidas por los servicios.
type Deps struct {
	Users    repository.UserRepository
	Flows    Flows
	Signer   *jwt.Signer
	OTP      *otp.Hasher
	Sessions Sessions
	Mailer   OTPSender
	Metrics  *metrics.Metrics
	Settings Settings
	Now      func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// issue firma un token de etapa y lo envuelve para el Result.
func (d *Deps) issue(typ jwt.TokenType, subject, flowID string, ttl time.Duration) (IssuedToken, error) {
	raw, err := d.Signer.Issue(typ, subject, map[string]string{jwt.PayloadFlowID: flowID}, ttl)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Type: typ, Value: raw, ExpiresAt: d.now().Add(ttl)}, nil
}

// issueSession emite at + lst.
func (d *Deps) issueSession(ctx context.Context, userID string) ([]IssuedToken, error) {
	tk, err := d.Sessions.Issue(ctx, userID)
	if err != nil {
		return nil, err
	}
	return []IssuedToken{
		{Type: jwt.TypeLogin, Value: tk.Access, ExpiresAt: tk.ExpiresAt},
		{Type: jwt.TypeLoginSession, Value: tk.Marker, ExpiresAt: tk.ExpiresAt},
	}, nil
}

// stageClaims valida el par OTP/sesión de un flujo: ambos firmados, vigentes,
// del tipo esperado y con el mismo flow id.
func (d *Deps) stageClaims(t StageTokens, otpType, sessType jwt.TokenType) (oc, sc jwt.Claims, ok bool) {
	oc, ok = d.Signer.ValidateType(t.OTP, otpType)
	if !ok {
		return jwt.Claims{}, jwt.Claims{}, false
	}
	sc, ok = d.Signer.ValidateType(t.Session, sessType)
	if !ok {
		return jwt.Claims{}, jwt.Claims{}, false
	}
	if oc.FlowID() == "" || oc.FlowID() != sc.FlowID() {
		return jwt.Claims{}, jwt.Claims{}, false
	}
	return oc, sc, true
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
