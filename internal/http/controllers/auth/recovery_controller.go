package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/stagegate/internal/http/errors"
	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
)

// RecoveryController maneja /auth/recovery/*.
type RecoveryController struct {
	service RecoveryService
	rp      responder
}

// Start maneja POST /auth/recovery
func (c *RecoveryController) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RecoveryController.Start"))

	var req dto.RecoveryRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.Start(ctx, req)
	c.rp.write(w, log, res, err, message(msgOTPSent))
}

// Resend maneja POST /auth/recovery/resend
func (c *RecoveryController) Resend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RecoveryController.Resend"))

	res, err := c.service.Resend(ctx, stageTokens(r, jwt.TypeRecoveryOTP, jwt.TypeRecoverySession))
	c.rp.write(w, log, res, err, message(msgOTPResent))
}

// Verify maneja POST /auth/recovery/verify
func (c *RecoveryController) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RecoveryController.Verify"))

	var req dto.VerifyRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.Verify(ctx, stageTokens(r, jwt.TypeRecoveryOTP, jwt.TypeRecoverySession), req)
	c.rp.write(w, log, res, err, message(msgOTPVerified))
}

// Reset maneja POST /auth/recovery/reset. Sólo mira la cookie prnpt.
func (c *RecoveryController) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RecoveryController.Reset"))

	var req dto.ResetRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.Reset(ctx, helpers.ReadCookie(r, jwt.TypeRecoveryReset), req)
	c.rp.write(w, log, res, err, message(msgPasswordReset))
}
