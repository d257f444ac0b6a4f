package session

import (
	"context"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
)

// UserLookup es la parte del repositorio que necesita el guard.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*repository.User, error)
}

// Guard valida el access token de un request.
type Guard struct {
	signer *jwt.Signer
	issuer *Issuer
	users  UserLookup
}

func NewGuard(signer *jwt.Signer, issuer *Issuer, users UserLookup) *Guard {
	return &Guard{signer: signer, issuer: issuer, users: users}
}

// Authenticate devuelve el usuario si el token es un LOGIN válido cuyo subject
// coincide con claimedUserID, su sid es el vigente y la cuenta existe y está
// activa. Cualquier otra cosa es false, sin distinguir el motivo.
func (g *Guard) Authenticate(ctx context.Context, accessToken, claimedUserID string) (*repository.User, bool) {
	if accessToken == "" || claimedUserID == "" {
		return nil, false
	}
	c, ok := g.signer.ValidateType(accessToken, jwt.TypeLogin)
	if !ok || c.Subject != claimedUserID {
		return nil, false
	}

	log := logger.From(ctx).With(logger.Component("session.guard"), logger.UserID(c.Subject))

	cur, err := g.issuer.IsCurrent(ctx, c.Subject, c.SessionID())
	if err != nil {
		log.Error("session_lookup_failed", logger.Err(err))
		return nil, false
	}
	if !cur {
		return nil, false
	}

	u, err := g.users.GetByID(ctx, c.Subject)
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Error("user_lookup_failed", logger.Err(err))
		}
		return nil, false
	}
	if !u.Active {
		return nil, false
	}
	return u, true
}
