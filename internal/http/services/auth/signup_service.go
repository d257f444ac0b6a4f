package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
	"github.com/dropDatabas3/stagegate/internal/email"
	"github.com/dropDatabas3/stagegate/internal/flowstore"
	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
	"github.com/dropDatabas3/stagegate/internal/security/otp"
	"github.com/dropDatabas3/stagegate/internal/security/password"
	tokens "github.com/dropDatabas3/stagegate/internal/security/token"
)

// SignupService maneja INIT -> OTP_PENDING -> VERIFIED.
type SignupService struct {
	d Deps
}

func NewSignupService(d Deps) *SignupService { return &SignupService{d: d} }

func cooldownKey(email string) string { return "signup:cooldown:" + tokens.EmailKey(email) }

// Start valida los datos, reserva la ventana de cooldown del email, guarda el
// registro y emite SIGNUP_OTP + SIGNUP_SESSION.
func (s *SignupService) Start(ctx context.Context, in dto.SignupRequest) (res Result, err error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.signup"),
		logger.Op("Start"),
	)
	defer func() { s.d.Metrics.FlowOutcome("signup", "start", outcomeLabel(res, err)) }()

	// Paso 1: normalizar y validar
	normalizeSignup(&in)
	if errs := validateSignup(s.d.Settings.PasswordPolicy, in); errs != nil {
		return invalid(errs), nil
	}

	// Paso 2: la cuenta no puede existir
	_, err = s.d.Users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return Result{Outcome: OutcomeConflict, Fields: map[string]string{"email": msgAccountExists}}, nil
	case !repository.IsNotFound(err):
		return Result{}, fmt.Errorf("signup: lookup: %w", err)
	}

	// Paso 3: cooldown por email (también evita dos starts simultáneos)
	ck := cooldownKey(in.Email)
	reserved, err := s.d.Flows.Reserve(ctx, ck, "1", s.d.Settings.SignupCooldown)
	if err != nil {
		return Result{}, err
	}
	if !reserved {
		return Result{Outcome: OutcomeCooldown, Fields: map[string]string{"email": msgCooldown}}, nil
	}

	fid := flowstore.NewFlowID()
	ok := false
	defer func() {
		if ok {
			return
		}
		// Deshacer la reserva y el registro para no bloquear al usuario.
		_ = s.d.Flows.Release(context.WithoutCancel(ctx), ck)
		_ = s.d.Flows.Delete(context.WithoutCancel(ctx), flowstore.KindSignup, fid)
	}()

	// Paso 4: hashear password y guardar registro
	pwdHash, err := password.Hash(s.d.Settings.PasswordParams, in.Password)
	if err != nil {
		return Result{}, fmt.Errorf("signup: hash password: %w", err)
	}
	code, err := otp.Generate()
	if err != nil {
		return Result{}, err
	}
	rec := flowstore.Record{
		HashedOTP:    s.d.OTP.Hash(code),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Gender:       in.Gender,
		Email:        in.Email,
		PasswordHash: pwdHash,
		CreatedAt:    s.d.now(),
	}
	cfg := s.d.Settings.Signup
	if err := s.d.Flows.Put(ctx, flowstore.KindSignup, fid, rec, cfg.SessionTTL); err != nil {
		return Result{}, err
	}

	// Paso 5: tokens de etapa
	otpTok, err := s.d.issue(jwt.TypeSignupOTP, fid, fid, cfg.OTPTTL)
	if err != nil {
		return Result{}, err
	}
	sessTok, err := s.d.issue(jwt.TypeSignupSession, fid, fid, cfg.SessionTTL)
	if err != nil {
		return Result{}, err
	}

	// Paso 6: enviar código
	err = s.d.Mailer.SendOTP(ctx, email.PurposeSignup, in.Email, in.FirstName, code, cfg.OTPTTL)
	s.d.Metrics.OTPSent("signup", err)
	if err != nil {
		return Result{}, fmt.Errorf("signup: send otp: %w", err)
	}

	ok = true
	log.Info("signup started", logger.FlowID(fid), logger.Email(in.Email))
	return Result{Outcome: OutcomeOK, Issued: []IssuedToken{otpTok, sessTok}}, nil
}

// Resend genera un código nuevo para un flujo vivo. Sólo se reemite sot; la
// sesión conserva su expiración original.
func (s *SignupService) Resend(ctx context.Context, t StageTokens) (res Result, err error) {
	defer func() { s.d.Metrics.FlowOutcome("signup", "resend", outcomeLabel(res, err)) }()
	return resend(ctx, &s.d, resendSpec{
		flow:     "signup",
		kind:     flowstore.KindSignup,
		purpose:  email.PurposeSignup,
		otpType:  jwt.TypeSignupOTP,
		sessType: jwt.TypeSignupSession,
		cfg:      s.d.Settings.Signup,
		clear:    signupCookies,
		name:     func(r flowstore.Record) string { return r.FirstName },
	}, t)
}

// Verify consume el registro si el código coincide, crea la cuenta y emite la
// sesión.
func (s *SignupService) Verify(ctx context.Context, t StageTokens, in dto.VerifyRequest) (res Result, err error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.signup"),
		logger.Op("Verify"),
	)
	defer func() { s.d.Metrics.FlowOutcome("signup", "verify", outcomeLabel(res, err)) }()

	// Paso 1: tokens de etapa
	_, sc, ok := s.d.stageClaims(t, jwt.TypeSignupOTP, jwt.TypeSignupSession)
	if !ok {
		return fail(OutcomeSessionExpired, signupCookies...), nil
	}
	fid := sc.FlowID()

	// Paso 2: formato del código
	if m := otpMessage(in.OTP); m != "" {
		return field("otp", m), nil
	}

	// Paso 3: el registro tiene que seguir vivo
	rec, found, err := s.d.Flows.Get(ctx, flowstore.KindSignup, fid)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return fail(OutcomeSessionExpired, signupCookies...), nil
	}
	if !s.d.OTP.Compare(in.OTP, rec.HashedOTP) {
		return field("otp", msgOTPInvalid), nil
	}

	// Paso 4: consumir; si otra verificación ganó, el flujo ya no existe
	rec, found, err = s.d.Flows.Take(ctx, flowstore.KindSignup, fid)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return fail(OutcomeSessionExpired, signupCookies...), nil
	}

	// Paso 5: crear la cuenta
	u, err := s.d.Users.Create(ctx, repository.CreateUserInput{
		Email:        rec.Email,
		FirstName:    rec.FirstName,
		LastName:     rec.LastName,
		Gender:       rec.Gender,
		PasswordHash: rec.PasswordHash,
		Signed:       true,
		Active:       true,
	})
	if repository.IsConflict(err) {
		r := Result{Outcome: OutcomeConflict, Fields: map[string]string{"email": msgAccountExists}}
		r.Clear = signupCookies
		return r, nil
	}
	if err != nil {
		s.restore(ctx, fid, sc.Remaining(s.d.now()), rec)
		return Result{}, fmt.Errorf("signup: create user: %w", err)
	}
	if err := s.d.Flows.Release(ctx, cooldownKey(rec.Email)); err != nil {
		log.Warn("release cooldown failed", logger.Err(err))
	}

	// Paso 6: sesión
	issued, err := s.d.issueSession(ctx, u.ID)
	if err != nil {
		return Result{}, err
	}
	log.Info("signup verified", logger.FlowID(fid), logger.UserID(u.ID))
	return Result{Outcome: OutcomeOK, Issued: issued, Clear: signupCookies, UserID: u.ID}, nil
}

// restore devuelve el registro consumido cuando la cuenta no se pudo crear,
// así el mismo código vuelve a servir. Si no se puede, libera el cooldown para
// que el usuario reinicie el registro.
func (s *SignupService) restore(ctx context.Context, fid string, ttl time.Duration, rec flowstore.Record) {
	ctx = context.WithoutCancel(ctx)
	log := logger.From(ctx)
	if ttl > 0 {
		err := s.d.Flows.Put(ctx, flowstore.KindSignup, fid, rec, ttl)
		if err == nil {
			return
		}
		log.Warn("restore signup record failed", logger.FlowID(fid), logger.Err(err))
	}
	if err := s.d.Flows.Release(ctx, cooldownKey(rec.Email)); err != nil {
		log.Warn("release cooldown failed", logger.Err(err))
	}
}
