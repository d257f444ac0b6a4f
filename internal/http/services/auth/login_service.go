package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
	"github.com/dropDatabas3/stagegate/internal/security/password"
)

type LoginService struct {
	d Deps
	// dummy iguala el costo de Verify cuando la cuenta no existe.
	dummy string
}

func NewLoginService(d Deps) *LoginService {
	dummy, _ := password.Hash(d.Settings.PasswordParams, "stagegate-login-dummy")
	return &LoginService{d: d, dummy: dummy}
}

// Login valida credenciales y emite la sesión.
func (s *LoginService) Login(ctx context.Context, in dto.LoginRequest) (res Result, err error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.login"),
		logger.Op("Login"),
	)
	defer func() { s.d.Metrics.FlowOutcome("login", "login", outcomeLabel(res, err)) }()

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	fields := map[string]string{}
	if in.Email == "" {
		fields["email"] = msgRequired
	}
	if in.Password == "" {
		fields["password"] = msgRequired
	}
	if len(fields) > 0 {
		return invalid(fields), nil
	}

	u, err := s.d.Users.GetByEmail(ctx, in.Email)
	if repository.IsNotFound(err) {
		if s.dummy != "" {
			_ = password.Verify(in.Password, s.dummy)
		}
		return fail(OutcomeInvalidCredentials), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("login: lookup: %w", err)
	}

	// Una cuenta sin verificar se rechaza sin mirar la contraseña.
	if !u.Signed {
		return fail(OutcomeAccountNotSigned), nil
	}
	if !u.Active {
		return fail(OutcomeAccountDisabled), nil
	}
	if !password.Verify(in.Password, u.PasswordHash) {
		return fail(OutcomeInvalidCredentials), nil
	}

	issued, err := s.d.issueSession(ctx, u.ID)
	if err != nil {
		return Result{}, err
	}
	log.Info("login ok", logger.UserID(u.ID))
	return Result{Outcome: OutcomeOK, Issued: issued, UserID: u.ID}, nil
}
