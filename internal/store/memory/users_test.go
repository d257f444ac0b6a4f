package memory

import (
	"context"
	"testing"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	"github.com/stretchr/testify/require"
)

func TestUserStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	u, err := s.Create(ctx, repository.CreateUserInput{
		Email: " Ana@Example.com", FirstName: "Ana", LastName: "Li", Gender: "f",
		PasswordHash: "h1", Signed: true, Active: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.Equal(t, "ana@example.com", u.Email)

	_, err = s.Create(ctx, repository.CreateUserInput{Email: "ana@example.com", PasswordHash: "x"})
	require.ErrorIs(t, err, repository.ErrConflict)

	got, err := s.GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	require.NoError(t, s.UpdatePasswordHash(ctx, u.ID, "h2"))
	require.NoError(t, s.SetActive(ctx, u.ID, false))
	got, err = s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "h2", got.PasswordHash)
	require.False(t, got.Active)

	_, err = s.GetByID(ctx, "nope")
	require.True(t, repository.IsNotFound(err))
	require.ErrorIs(t, s.SetActive(ctx, "nope", true), repository.ErrNotFound)
}

func TestUserStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	u, err := s.Create(ctx, repository.CreateUserInput{Email: "a@b.co", PasswordHash: "h"})
	require.NoError(t, err)
	u.PasswordHash = "mutado"

	got, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "h", got.PasswordHash)
}
