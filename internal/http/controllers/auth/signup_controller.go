package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/stagegate/internal/http/errors"
	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
)

// SignupController maneja /auth/signup, /auth/signup/resend y /auth/signup/verify.
type SignupController struct {
	service SignupService
	rp      responder
}

// Start maneja POST /auth/signup
func (c *SignupController) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SignupController.Start"))

	var req dto.SignupRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.Start(ctx, req)
	c.rp.write(w, log, res, err, message(msgOTPSent))
}

// Resend maneja POST /auth/signup/resend
func (c *SignupController) Resend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SignupController.Resend"))

	res, err := c.service.Resend(ctx, stageTokens(r, jwt.TypeSignupOTP, jwt.TypeSignupSession))
	c.rp.write(w, log, res, err, message(msgOTPResent))
}

// Verify maneja POST /auth/signup/verify
func (c *SignupController) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SignupController.Verify"))

	var req dto.VerifyRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.Verify(ctx, stageTokens(r, jwt.TypeSignupOTP, jwt.TypeSignupSession), req)
	c.rp.write(w, log, res, err, dto.SessionResponse{UID: res.UserID})
}
