// Package auth contiene los controllers HTTP de los flujos de signup, login,
// recovery y cuenta. Traducen svc.Result a cookies y a respuestas JSON.
package auth

import (
	"context"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	svc "github.com/dropDatabas3/stagegate/internal/http/services/auth"
)

type SignupService interface {
	Start(ctx context.Context, in dto.SignupRequest) (svc.Result, error)
	Resend(ctx context.Context, t svc.StageTokens) (svc.Result, error)
	Verify(ctx context.Context, t svc.StageTokens, in dto.VerifyRequest) (svc.Result, error)
}

type LoginService interface {
	Login(ctx context.Context, in dto.LoginRequest) (svc.Result, error)
}

type RecoveryService interface {
	Start(ctx context.Context, in dto.RecoveryRequest) (svc.Result, error)
	Resend(ctx context.Context, t svc.StageTokens) (svc.Result, error)
	Verify(ctx context.Context, t svc.StageTokens, in dto.VerifyRequest) (svc.Result, error)
	Reset(ctx context.Context, resetToken string, in dto.ResetRequest) (svc.Result, error)
}

type AccountService interface {
	ChangePassword(ctx context.Context, u *repository.User, in dto.ChangePasswordRequest) (svc.Result, error)
	Logout(ctx context.Context, userID, marker string) (svc.Result, error)
}

// Services son las dependencias de los controllers.
type Services struct {
	Signup   SignupService
	Login    LoginService
	Recovery RecoveryService
	Account  AccountService
}

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Signup   *SignupController
	Login    *LoginController
	Recovery *RecoveryController
	Account  *AccountController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(s Services, cookies helpers.CookieConfig) *Controllers {
	rp := responder{cookies: cookies}
	return &Controllers{
		Signup:   &SignupController{service: s.Signup, rp: rp},
		Login:    &LoginController{service: s.Login, rp: rp},
		Recovery: &RecoveryController{service: s.Recovery, rp: rp},
		Account:  &AccountController{service: s.Account, rp: rp},
	}
}
