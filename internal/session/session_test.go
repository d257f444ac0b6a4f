package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/stagegate/internal/cache"
	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/store/memory"
)

type fixture struct {
	signer *jwt.Signer
	issuer *Issuer
	guard  *Guard
	users  *memory.UserStore
	user   *repository.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := jwt.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "test")
	require.NoError(t, err)
	c := cache.NewMemory("", time.Minute)
	users := memory.NewUserStore()
	u, err := users.Create(context.Background(), repository.CreateUserInput{
		Email: "ana@example.com", PasswordHash: "h", Signed: true, Active: true,
	})
	require.NoError(t, err)
	iss := NewIssuer(signer, c, Settings{AccessTTL: time.Hour}, nil)
	return &fixture{signer: signer, issuer: iss, guard: NewGuard(signer, iss, users), users: users, user: u}
}

func TestIssue_PairSharesSID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tk, err := f.issuer.Issue(ctx, f.user.ID)
	require.NoError(t, err)

	ac, ok := f.signer.ValidateType(tk.Access, jwt.TypeLogin)
	require.True(t, ok)
	mc, ok := f.signer.ValidateType(tk.Marker, jwt.TypeLoginSession)
	require.True(t, ok)
	require.Equal(t, ac.SessionID(), mc.SessionID())
	require.Equal(t, tk.SessionID, ac.SessionID())
	require.Equal(t, f.user.ID, ac.Subject)

	cur, err := f.issuer.IsCurrent(ctx, f.user.ID, tk.SessionID)
	require.NoError(t, err)
	require.True(t, cur)
}

func TestGuard_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, err := f.issuer.Issue(ctx, f.user.ID)
	require.NoError(t, err)

	u, ok := f.guard.Authenticate(ctx, tk.Access, f.user.ID)
	require.True(t, ok)
	require.Equal(t, f.user.ID, u.ID)

	// header de usuario distinto
	_, ok = f.guard.Authenticate(ctx, tk.Access, "otro")
	require.False(t, ok)

	// el marcador no sirve como access token
	_, ok = f.guard.Authenticate(ctx, tk.Marker, f.user.ID)
	require.False(t, ok)

	_, ok = f.guard.Authenticate(ctx, "", f.user.ID)
	require.False(t, ok)
}

func TestGuard_NewSessionSupersedesOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.issuer.Issue(ctx, f.user.ID)
	require.NoError(t, err)
	second, err := f.issuer.Issue(ctx, f.user.ID)
	require.NoError(t, err)

	_, ok := f.guard.Authenticate(ctx, first.Access, f.user.ID)
	require.False(t, ok)
	_, ok = f.guard.Authenticate(ctx, second.Access, f.user.ID)
	require.True(t, ok)
}

func TestGuard_DisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, err := f.issuer.Issue(ctx, f.user.ID)
	require.NoError(t, err)
	require.NoError(t, f.users.SetActive(ctx, f.user.ID, false))

	_, ok := f.guard.Authenticate(ctx, tk.Access, f.user.ID)
	require.False(t, ok)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, err := f.issuer.Issue(ctx, f.user.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.issuer.Revoke(ctx, f.user.ID, tk.Access), ErrInvalidMarker)
	require.ErrorIs(t, f.issuer.Revoke(ctx, "otro", tk.Marker), ErrInvalidMarker)

	require.NoError(t, f.issuer.Revoke(ctx, f.user.ID, tk.Marker))
	_, ok := f.guard.Authenticate(ctx, tk.Access, f.user.ID)
	require.False(t, ok)

	// segundo logout con el mismo marcador
	require.ErrorIs(t, f.issuer.Revoke(ctx, f.user.ID, tk.Marker), ErrInvalidMarker)
}

func TestRevokeAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, err := f.issuer.Issue(ctx, f.user.ID)
	require.NoError(t, err)
	require.NoError(t, f.issuer.RevokeAll(ctx, f.user.ID))
	_, ok := f.guard.Authenticate(ctx, tk.Access, f.user.ID)
	require.False(t, ok)
}
