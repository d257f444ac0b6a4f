package auth

import (
	"net/http"

	"go.uber.org/zap"

	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/stagegate/internal/http/errors"
	"github.com/dropDatabas3/stagegate/internal/http/helpers"
	svc "github.com/dropDatabas3/stagegate/internal/http/services/auth"
	"github.com/dropDatabas3/stagegate/internal/jwt"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
)

// Mensajes de éxito.
const (
	msgOTPSent       = "Te enviamos un código de verificación."
	msgOTPResent     = "Te reenviamos el código de verificación."
	msgOTPVerified   = "Código verificado."
	msgPasswordReset = "Tu contraseña fue actualizada."
	msgPasswordSaved = "Contraseña actualizada."
	msgLoggedOut     = "Sesión cerrada."
)

// outcomeErrors mapea cada rechazo a su error HTTP.
var outcomeErrors = map[svc.Outcome]*httperrors.AppError{
	svc.OutcomeValidation:         httperrors.ErrValidation,
	svc.OutcomeSessionExpired:     httperrors.ErrSessionExpired,
	svc.OutcomeConflict:           httperrors.ErrConflict,
	svc.OutcomeCooldown:           httperrors.ErrCooldown,
	svc.OutcomeTooManyResends:     httperrors.ErrTooManyResends,
	svc.OutcomeInvalidCredentials: httperrors.ErrInvalidCredentials,
	svc.OutcomeAccountNotSigned:   httperrors.ErrAccountNotSigned,
	svc.OutcomeAccountDisabled:    httperrors.ErrAccountDisabled,
	svc.OutcomeNoAccount:          httperrors.ErrNoAccount,
}

type responder struct {
	cookies helpers.CookieConfig
}

// cookies aplica primero los borrados y después los tokens emitidos, así un
// tipo que se limpia y se reemite en el mismo paso queda con el valor nuevo.
func (rp responder) applyCookies(w http.ResponseWriter, res svc.Result) {
	issued := make(map[jwt.TokenType]bool, len(res.Issued))
	for _, it := range res.Issued {
		issued[it.Type] = true
	}
	for _, t := range res.Clear {
		if name := helpers.CookieName(t); name != "" && !issued[t] {
			http.SetCookie(w, helpers.BuildDeletionCookie(name, rp.cookies))
		}
	}
	for _, it := range res.Issued {
		if name := helpers.CookieName(it.Type); name != "" {
			http.SetCookie(w, helpers.BuildCookie(name, it.Value, rp.cookies, it.ExpiresAt))
		}
	}
}

// write traduce el resultado de un servicio a la respuesta HTTP. body sólo se
// usa si el outcome es OK.
func (rp responder) write(w http.ResponseWriter, log *zap.Logger, res svc.Result, err error, body any) {
	if err != nil {
		log.Error("service failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}

	rp.applyCookies(w, res)

	if res.OK() {
		helpers.WriteJSON(w, http.StatusOK, body)
		return
	}
	appErr, ok := outcomeErrors[res.Outcome]
	if !ok {
		log.Error("unknown outcome", logger.Outcome(string(res.Outcome)))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	log.Debug("stage rejected", logger.Outcome(string(res.Outcome)))
	httperrors.WriteError(w, appErr.WithFields(res.Fields))
}

func message(m string) dto.MessageResponse { return dto.MessageResponse{Message: m} }

func stageTokens(r *http.Request, otpType, sessType jwt.TokenType) svc.StageTokens {
	return svc.StageTokens{
		OTP:     helpers.ReadCookie(r, otpType),
		Session: helpers.ReadCookie(r, sessType),
	}
}
