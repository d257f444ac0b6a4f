package repository

import (
	"context"
	"strings"
	"time"
)

// User representa una cuenta.
// Signed indica que la cuenta completó el registro (signup verificado);
// Active=false es una cuenta deshabilitada.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Gender       string
	PasswordHash string
	Signed       bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Email        string
	FirstName    string
	LastName     string
	Gender       string
	PasswordHash string
	Signed       bool
	Active       bool
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// Create inserta un usuario. Retorna ErrConflict si el email ya existe.
	Create(ctx context.Context, in CreateUserInput) (*User, error)

	// GetByEmail busca por email normalizado. Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID busca por ID. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// UpdatePasswordHash reemplaza el hash. Retorna ErrNotFound si no existe.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// SetActive habilita o deshabilita la cuenta.
	SetActive(ctx context.Context, id string, active bool) error
}

// NormalizeEmail: trim + lower.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
