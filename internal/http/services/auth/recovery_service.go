package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	"github.com/dropDatabas3/stagegate/internal/email"
	"github.com/dropDatabas3/stagegate/internal/flowstore"
	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
	"github.com/dropDatabas3/stagegate/internal/security/otp"
	"github.com/dropDatabas3/stagegate/internal/security/password"
)

var resetCookies = []jwt.TokenType{jwt.TypeRecoveryReset}

// RecoveryService maneja INIT -> OTP_PENDING -> RESET_PENDING -> DONE.
//
// A diferencia de signup, Start informa si el email no tiene cuenta.
type RecoveryService struct {
	d Deps
}

func NewRecoveryService(d Deps) *RecoveryService { return &RecoveryService{d: d} }

func usedKey(flowID string) string { return "recovery:used:" + flowID }

func (s *RecoveryService) Start(ctx context.Context, in dto.RecoveryRequest) (res Result, err error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.recovery"),
		logger.Op("Start"),
	)
	defer func() { s.d.Metrics.FlowOutcome("recovery", "start", outcomeLabel(res, err)) }()

	addr := strings.ToLower(strings.TrimSpace(in.Email))
	if !validEmail(addr) {
		return field("email", msgEmail), nil
	}

	u, err := s.d.Users.GetByEmail(ctx, addr)
	if repository.IsNotFound(err) {
		return Result{Outcome: OutcomeNoAccount, Fields: map[string]string{"email": msgNoAccount}}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("recovery: lookup: %w", err)
	}
	if !u.Signed {
		return fail(OutcomeAccountNotSigned), nil
	}
	if !u.Active {
		return fail(OutcomeAccountDisabled), nil
	}

	code, err := otp.Generate()
	if err != nil {
		return Result{}, err
	}
	fid := flowstore.NewFlowID()
	cfg := s.d.Settings.Recovery
	rec := flowstore.Record{
		HashedOTP: s.d.OTP.Hash(code),
		FirstName: u.FirstName,
		Email:     u.Email,
		UserID:    u.ID,
		CreatedAt: s.d.now(),
	}
	if err := s.d.Flows.Put(ctx, flowstore.KindRecovery, fid, rec, cfg.SessionTTL); err != nil {
		return Result{}, err
	}

	otpTok, err := s.d.issue(jwt.TypeRecoveryOTP, u.ID, fid, cfg.OTPTTL)
	if err != nil {
		return Result{}, err
	}
	sessTok, err := s.d.issue(jwt.TypeRecoverySession, u.ID, fid, cfg.SessionTTL)
	if err != nil {
		return Result{}, err
	}

	err = s.d.Mailer.SendOTP(ctx, email.PurposeRecovery, u.Email, u.FirstName, code, cfg.OTPTTL)
	s.d.Metrics.OTPSent("recovery", err)
	if err != nil {
		_ = s.d.Flows.Delete(context.WithoutCancel(ctx), flowstore.KindRecovery, fid)
		return Result{}, fmt.Errorf("recovery: send otp: %w", err)
	}

	log.Info("recovery started", logger.FlowID(fid), logger.UserID(u.ID))
	return Result{Outcome: OutcomeOK, Issued: []IssuedToken{otpTok, sessTok}}, nil
}

func (s *RecoveryService) Resend(ctx context.Context, t StageTokens) (res Result, err error) {
	defer func() { s.d.Metrics.FlowOutcome("recovery", "resend", outcomeLabel(res, err)) }()
	return resend(ctx, &s.d, resendSpec{
		flow:     "recovery",
		kind:     flowstore.KindRecovery,
		purpose:  email.PurposeRecovery,
		otpType:  jwt.TypeRecoveryOTP,
		sessType: jwt.TypeRecoverySession,
		cfg:      s.d.Settings.Recovery,
		clear:    recoveryCookies,
		name:     func(r flowstore.Record) string { return r.FirstName },
	}, t)
}

// Verify consume el registro y emite RECOVERY_RESET.
func (s *RecoveryService) Verify(ctx context.Context, t StageTokens, in dto.VerifyRequest) (res Result, err error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.recovery"),
		logger.Op("Verify"),
	)
	defer func() { s.d.Metrics.FlowOutcome("recovery", "verify", outcomeLabel(res, err)) }()

	oc, sc, ok := s.d.stageClaims(t, jwt.TypeRecoveryOTP, jwt.TypeRecoverySession)
	if !ok || oc.Subject == "" || oc.Subject != sc.Subject {
		return fail(OutcomeSessionExpired, recoveryCookies...), nil
	}
	fid := sc.FlowID()

	if m := otpMessage(in.OTP); m != "" {
		return field("otp", m), nil
	}

	rec, found, err := s.d.Flows.Get(ctx, flowstore.KindRecovery, fid)
	if err != nil {
		return Result{}, err
	}
	if !found || rec.UserID != sc.Subject {
		return fail(OutcomeSessionExpired, recoveryCookies...), nil
	}
	if !s.d.OTP.Compare(in.OTP, rec.HashedOTP) {
		return field("otp", msgOTPInvalid), nil
	}

	if _, found, err = s.d.Flows.Take(ctx, flowstore.KindRecovery, fid); err != nil {
		return Result{}, err
	}
	if !found {
		return fail(OutcomeSessionExpired, recoveryCookies...), nil
	}

	resetTok, err := s.d.issue(jwt.TypeRecoveryReset, rec.UserID, fid, s.d.Settings.ResetTTL)
	if err != nil {
		return Result{}, err
	}
	log.Info("recovery verified", logger.FlowID(fid), logger.UserID(rec.UserID))
	return Result{Outcome: OutcomeOK, Issued: []IssuedToken{resetTok}, Clear: recoveryCookies}, nil
}

// Reset aplica la nueva contraseña. El token de reset es de un solo uso y al
// terminar se revoca la sesión vigente del usuario.
func (s *RecoveryService) Reset(ctx context.Context, resetToken string, in dto.ResetRequest) (res Result, err error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.recovery"),
		logger.Op("Reset"),
	)
	defer func() { s.d.Metrics.FlowOutcome("recovery", "reset", outcomeLabel(res, err)) }()

	c, ok := s.d.Signer.ValidateType(resetToken, jwt.TypeRecoveryReset)
	if !ok || c.Subject == "" || c.FlowID() == "" {
		return fail(OutcomeSessionExpired, resetCookies...), nil
	}

	// La política se valida antes de consumir el token.
	if m := passwordMessage(s.d.Settings.PasswordPolicy, in.Password); m != "" {
		return field("password", m), nil
	}

	reserved, err := s.d.Flows.Reserve(ctx, usedKey(c.FlowID()), c.Subject, s.d.Settings.ResetTTL)
	if err != nil {
		return Result{}, err
	}
	if !reserved {
		return fail(OutcomeSessionExpired, resetCookies...), nil
	}
	// Una falla de infraestructura no quema el token: se puede reintentar.
	defer func() {
		if err == nil {
			return
		}
		if rerr := s.d.Flows.Release(context.WithoutCancel(ctx), usedKey(c.FlowID())); rerr != nil {
			log.Warn("release reset token failed", logger.FlowID(c.FlowID()), logger.Err(rerr))
		}
	}()

	u, err := s.d.Users.GetByID(ctx, c.Subject)
	if repository.IsNotFound(err) {
		return fail(OutcomeSessionExpired, resetCookies...), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("recovery: lookup: %w", err)
	}
	// La cuenta pudo cambiar desde la verificación.
	if !u.Signed {
		return fail(OutcomeAccountNotSigned, resetCookies...), nil
	}
	if !u.Active {
		return fail(OutcomeAccountDisabled, resetCookies...), nil
	}

	hash, err := password.Hash(s.d.Settings.PasswordParams, in.Password)
	if err != nil {
		return Result{}, fmt.Errorf("recovery: hash password: %w", err)
	}
	if err := s.d.Users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return Result{}, fmt.Errorf("recovery: update password: %w", err)
	}
	if err := s.d.Sessions.RevokeAll(ctx, u.ID); err != nil {
		log.Warn("revoke sessions failed", logger.UserID(u.ID), logger.Err(err))
	}

	log.Info("password reset", logger.FlowID(c.FlowID()), logger.UserID(u.ID))
	return Result{Outcome: OutcomeOK, Clear: resetCookies, UserID: u.ID}, nil
}
