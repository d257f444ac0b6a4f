package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
	"github.com/dropDatabas3/stagegate/internal/security/password"
	"github.com/dropDatabas3/stagegate/internal/session"
)

// AccountService agrupa las operaciones de un usuario ya autenticado.
type AccountService struct {
	d Deps
}

func NewAccountService(d Deps) *AccountService { return &AccountService{d: d} }

// ChangePassword exige la contraseña actual.
func (s *AccountService) ChangePassword(ctx context.Context, u *repository.User, in dto.ChangePasswordRequest) (Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.account"),
		logger.Op("ChangePassword"),
	)

	fields := map[string]string{}
	if in.Password == "" {
		fields["password"] = msgRequired
	}
	if m := passwordMessage(s.d.Settings.PasswordPolicy, in.NewPassword); m != "" {
		fields["new_password"] = m
	}
	if len(fields) > 0 {
		return invalid(fields), nil
	}
	if !password.Verify(in.Password, u.PasswordHash) {
		return field("password", msgPasswordWrong), nil
	}

	hash, err := password.Hash(s.d.Settings.PasswordParams, in.NewPassword)
	if err != nil {
		return Result{}, fmt.Errorf("account: hash password: %w", err)
	}
	if err := s.d.Users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return Result{}, fmt.Errorf("account: update password: %w", err)
	}
	log.Info("password changed", logger.UserID(u.ID))
	return Result{Outcome: OutcomeOK, UserID: u.ID}, nil
}

// Logout revoca la sesión del marcador. Las cookies at/lst se limpian siempre.
func (s *AccountService) Logout(ctx context.Context, userID, marker string) (res Result, err error) {
	defer func() { s.d.Metrics.FlowOutcome("session", "logout", outcomeLabel(res, err)) }()

	err = s.d.Sessions.Revoke(ctx, userID, marker)
	if errors.Is(err, session.ErrInvalidMarker) {
		return fail(OutcomeSessionExpired, sessionCookies...), nil
	}
	if err != nil {
		return Result{}, err
	}
	logger.From(ctx).Info("logout", logger.Layer("service"), logger.UserID(userID))
	return Result{Outcome: OutcomeOK, Clear: sessionCookies, UserID: userID}, nil
}
