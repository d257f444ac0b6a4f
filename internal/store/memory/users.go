// Package memory implementa repository.UserRepository en memoria.
// Pensado para dev y tests; no persiste entre reinicios.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	"github.com/google/uuid"
)

type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*repository.User
	byEmail map[string]string
	now     func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    map[string]*repository.User{},
		byEmail: map[string]string{},
		now:     time.Now,
	}
}

var _ repository.UserRepository = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	email := repository.NormalizeEmail(in.Email)
	if email == "" || in.PasswordHash == "" {
		return nil, repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byEmail[email]; dup {
		return nil, repository.ErrConflict
	}
	now := s.now().UTC()
	u := &repository.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Gender:       in.Gender,
		PasswordHash: in.PasswordHash,
		Signed:       in.Signed,
		Active:       in.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[repository.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if hash == "" {
		return repository.ErrInvalidInput
	}
	return s.update(id, func(u *repository.User) { u.PasswordHash = hash })
}

func (s *UserStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.update(id, func(u *repository.User) { u.Active = active })
}

// Put inserta un usuario tal cual (seed de tests: cuentas sin firmar, etc.).
func (s *UserStore) Put(u repository.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = repository.NormalizeEmail(u.Email)
	s.byID[u.ID] = &u
	s.byEmail[u.Email] = u.ID
}

func (s *UserStore) update(id string, fn func(u *repository.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = s.now().UTC()
	return nil
}
