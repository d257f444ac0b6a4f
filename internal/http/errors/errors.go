// Package errors es el catálogo de errores HTTP y su serialización.
package errors

import (
	"encoding/json"
	"net/http"
)

// errorResponse controla exactamente qué campos se envían al cliente.
type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Detail  string            `json:"detail,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteError escribe la respuesta para err. La causa (AppError.Err) nunca se
// serializa; loguearla es responsabilidad de quien llama.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
		Fields:  appErr.Fields,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
