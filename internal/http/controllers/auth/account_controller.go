package auth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/stagegate/internal/http/errors"
	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	mw "github.com/dropDatabas3/stagegate/internal/http/middlewares"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
)

// HeaderLoginSession permite mandar el marcador sin depender de la cookie.
const HeaderLoginSession = "Lst"

// AccountController maneja las rutas que requieren sesión. Todas corren
// detrás de RequireAuth.
type AccountController struct {
	service AccountService
	rp      responder
}

// Check maneja GET /auth/check
func (c *AccountController) Check(w http.ResponseWriter, r *http.Request) {
	u := mw.GetUser(r.Context())
	if u == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthenticated)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SessionResponse{UID: u.ID})
}

// Logout maneja POST /auth/logout
func (c *AccountController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AccountController.Logout"))

	u := mw.GetUser(ctx)
	if u == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthenticated)
		return
	}
	marker := strings.TrimSpace(r.Header.Get(HeaderLoginSession))
	if marker == "" {
		marker = helpers.ReadCookie(r, jwt.TypeLoginSession)
	}

	res, err := c.service.Logout(ctx, u.ID, marker)
	c.rp.write(w, log, res, err, message(msgLoggedOut))
}

// ChangePassword maneja POST /auth/password
func (c *AccountController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AccountController.ChangePassword"))

	u := mw.GetUser(ctx)
	if u == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthenticated)
		return
	}
	var req dto.ChangePasswordRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.ChangePassword(ctx, u, req)
	c.rp.write(w, log, res, err, message(msgPasswordSaved))
}
