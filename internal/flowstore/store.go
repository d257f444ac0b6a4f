// Package flowstore guarda el estado en vuelo de los flujos de signup y
// recovery sobre cache.Client. Un registro vive bajo flow:<kind>:<flowID> con
// el TTL de la sesión del flujo; el flowID viaja en el payload de los tokens.
package flowstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/stagegate/internal/cache"
	"github.com/google/uuid"
)

type Kind string

const (
	KindSignup   Kind = "signup"
	KindRecovery Kind = "recovery"
)

// Record es el estado de un flujo. Sólo HashedOTP se guarda del código;
// PasswordHash ya viene hasheado (signup).
type Record struct {
	Kind         Kind      `json:"kind"`
	HashedOTP    string    `json:"hotp"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"pwd_hash,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ResendCount  int       `json:"resend_count"`
}

var ErrInvalidTTL = errors.New("flowstore: ttl must be positive")

type Store struct {
	c cache.Client
}

func New(c cache.Client) *Store { return &Store{c: c} }

// NewFlowID genera un id de flujo opaco.
func NewFlowID() string { return uuid.NewString() }

func key(kind Kind, flowID string) string {
	return "flow:" + string(kind) + ":" + flowID
}

// Put crea o sobrescribe el registro.
func (s *Store) Put(ctx context.Context, kind Kind, flowID string, rec Record, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	rec.Kind = kind
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("flowstore: encode: %w", err)
	}
	if err := s.c.Set(ctx, key(kind, flowID), string(b), ttl); err != nil {
		return fmt.Errorf("flowstore: put: %w", err)
	}
	return nil
}

// Get devuelve ok=false si el registro no existe o expiró.
func (s *Store) Get(ctx context.Context, kind Kind, flowID string) (Record, bool, error) {
	if flowID == "" {
		return Record{}, false, nil
	}
	raw, err := s.c.Get(ctx, key(kind, flowID))
	return decode(kind, raw, err)
}

// Take obtiene y borra atómicamente. Con dos verificaciones concurrentes sólo
// una recibe ok=true.
func (s *Store) Take(ctx context.Context, kind Kind, flowID string) (Record, bool, error) {
	if flowID == "" {
		return Record{}, false, nil
	}
	raw, err := s.c.Take(ctx, key(kind, flowID))
	return decode(kind, raw, err)
}

func (s *Store) Delete(ctx context.Context, kind Kind, flowID string) error {
	if flowID == "" {
		return nil
	}
	return s.c.Delete(ctx, key(kind, flowID))
}

// Reserve marca key si no existe (cooldowns, marcadores de un solo uso).
func (s *Store) Reserve(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	ok, err := s.c.SetNX(ctx, key, value, ttl)
	if err != nil {
		return false, fmt.Errorf("flowstore: reserve: %w", err)
	}
	return ok, nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.c.Delete(ctx, key)
}

func decode(kind Kind, raw string, err error) (Record, bool, error) {
	if cache.IsNotFound(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("flowstore: get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, false, fmt.Errorf("flowstore: decode: %w", err)
	}
	// Un flowID de signup nunca resuelve un registro de recovery y viceversa.
	if rec.Kind != kind {
		return Record{}, false, nil
	}
	return rec, true, nil
}
