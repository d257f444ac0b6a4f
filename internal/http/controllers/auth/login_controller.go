package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/stagegate/internal/http/errors"
	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
)

// LoginController maneja el endpoint de login.
type LoginController struct {
	service LoginService
	rp      responder
}

// Login maneja POST /auth/login
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	var req dto.LoginRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.Login(ctx, req)
	c.rp.write(w, log, res, err, dto.SessionResponse{UID: res.UserID})
}
