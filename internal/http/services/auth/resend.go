package auth

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/stagegate/internal/email"
	"github.com/dropDatabas3/stagegate/internal/flowstore"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
	"github.com/dropDatabas3/stagegate/internal/security/otp"
)

// resendSpec parametriza el reenvío para signup y recovery.
type resendSpec struct {
	flow     string
	kind     flowstore.Kind
	purpose  email.Purpose
	otpType  jwt.TokenType
	sessType jwt.TokenType
	cfg      FlowSettings
	clear    []jwt.TokenType
	name     func(flowstore.Record) string
}

func resend(ctx context.Context, d *Deps, sp resendSpec, t StageTokens) (Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth."+sp.flow),
		logger.Op("Resend"),
	)

	// El token OTP puede estar vencido; lo que acota el reenvío es la sesión.
	sc, ok := d.Signer.ValidateType(t.Session, sp.sessType)
	if !ok || sc.FlowID() == "" {
		return fail(OutcomeSessionExpired, sp.clear...), nil
	}
	fid := sc.FlowID()
	remaining := sc.Remaining(d.now())
	if remaining <= 0 {
		return fail(OutcomeSessionExpired, sp.clear...), nil
	}

	rec, found, err := d.Flows.Get(ctx, sp.kind, fid)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return fail(OutcomeSessionExpired, sp.clear...), nil
	}
	if sp.cfg.MaxResends > 0 && rec.ResendCount >= sp.cfg.MaxResends {
		return fail(OutcomeTooManyResends), nil
	}

	code, err := otp.Generate()
	if err != nil {
		return Result{}, err
	}
	rec.HashedOTP = d.OTP.Hash(code)
	rec.CreatedAt = d.now()
	rec.ResendCount++
	// TTL = vida restante de la sesión: el reenvío no extiende el flujo.
	if err := d.Flows.Put(ctx, sp.kind, fid, rec, remaining); err != nil {
		return Result{}, err
	}

	ttl := minDuration(sp.cfg.OTPTTL, remaining)
	otpTok, err := d.issue(sp.otpType, sc.Subject, fid, ttl)
	if err != nil {
		return Result{}, err
	}

	err = d.Mailer.SendOTP(ctx, sp.purpose, rec.Email, sp.name(rec), code, ttl)
	d.Metrics.OTPSent(sp.flow, err)
	if err != nil {
		return Result{}, fmt.Errorf("%s: send otp: %w", sp.flow, err)
	}

	log.Info("otp resent", logger.FlowID(fid), logger.Int("resend_count", rec.ResendCount))
	return Result{Outcome: OutcomeOK, Issued: []IssuedToken{otpTok}}, nil
}

// outcomeLabel es la etiqueta de métricas de una etapa.
func outcomeLabel(r Result, err error) string {
	if err != nil {
		return "error"
	}
	if r.Outcome == "" {
		return "unknown"
	}
	return string(r.Outcome)
}
