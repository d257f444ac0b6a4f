// Package session emite el par access token / marcador de sesión y valida
// requests autenticados.
//
// Cada usuario tiene a lo sumo una sesión vigente: session:current:<userID>
// guarda el sid emitido por última vez. Emitir una sesión nueva invalida la
// anterior aunque sus tokens sigan firmados y sin expirar.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/stagegate/internal/cache"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/metrics"
	tokens "github.com/dropDatabas3/stagegate/internal/security/token"
)

var ErrInvalidMarker = errors.New("session: invalid session marker")

type Settings struct {
	AccessTTL time.Duration
}

// Tokens es lo que se entrega al cliente: Access va en la cookie at (http-only),
// Marker en lst (legible por el cliente).
type Tokens struct {
	Access    string
	Marker    string
	SessionID string
	ExpiresAt time.Time
}

type Issuer struct {
	signer  *jwt.Signer
	cache   cache.Client
	cfg     Settings
	metrics *metrics.Metrics
}

func NewIssuer(signer *jwt.Signer, c cache.Client, cfg Settings, m *metrics.Metrics) *Issuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 7 * 24 * time.Hour
	}
	return &Issuer{signer: signer, cache: c, cfg: cfg, metrics: m}
}

func currentKey(userID string) string { return "session:current:" + userID }

// Issue genera un sid nuevo y lo registra como el vigente del usuario.
func (i *Issuer) Issue(ctx context.Context, userID string) (Tokens, error) {
	sid, err := tokens.NewSessionID()
	if err != nil {
		return Tokens{}, fmt.Errorf("session: sid: %w", err)
	}
	pld := map[string]string{jwt.PayloadSessionID: sid}

	access, err := i.signer.Issue(jwt.TypeLogin, userID, pld, i.cfg.AccessTTL)
	if err != nil {
		return Tokens{}, err
	}
	marker, err := i.signer.Issue(jwt.TypeLoginSession, userID, pld, i.cfg.AccessTTL)
	if err != nil {
		return Tokens{}, err
	}
	if err := i.cache.Set(ctx, currentKey(userID), sid, i.cfg.AccessTTL); err != nil {
		return Tokens{}, fmt.Errorf("session: store marker: %w", err)
	}
	i.metrics.SessionIssued()
	return Tokens{
		Access:    access,
		Marker:    marker,
		SessionID: sid,
		ExpiresAt: time.Now().Add(i.cfg.AccessTTL),
	}, nil
}

// IsCurrent indica si sid es la sesión vigente de userID.
func (i *Issuer) IsCurrent(ctx context.Context, userID, sid string) (bool, error) {
	if userID == "" || sid == "" {
		return false, nil
	}
	cur, err := i.cache.Get(ctx, currentKey(userID))
	if cache.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cur == sid, nil
}

// Revoke cierra la sesión identificada por el marcador (logout). El marcador
// tiene que ser un LOGIN_SESSION válido de userID con el sid vigente.
func (i *Issuer) Revoke(ctx context.Context, userID, marker string) error {
	c, ok := i.signer.ValidateType(marker, jwt.TypeLoginSession)
	if !ok || c.Subject != userID {
		return ErrInvalidMarker
	}
	cur, err := i.IsCurrent(ctx, userID, c.SessionID())
	if err != nil {
		return err
	}
	if !cur {
		return ErrInvalidMarker
	}
	return i.cache.Delete(ctx, currentKey(userID))
}

// RevokeAll invalida cualquier sesión vigente del usuario (reset de contraseña).
func (i *Issuer) RevokeAll(ctx context.Context, userID string) error {
	return i.cache.Delete(ctx, currentKey(userID))
}
