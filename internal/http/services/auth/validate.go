package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	dto "github.com/dropDatabas3/stagegate/internal/http/dto/auth"
	"github.com/dropDatabas3/stagegate/internal/security/otp"
	"github.com/dropDatabas3/stagegate/internal/security/password"
)

// Mensajes por campo.
const (
	msgFirstName      = "El nombre debe tener al menos 3 caracteres."
	msgLastName       = "El apellido debe tener al menos 2 caracteres."
	msgGender         = "El género es obligatorio."
	msgEmail          = "Email inválido."
	msgPassword       = "La contraseña debe tener entre 8 y 32 caracteres, con al menos una letra y un número."
	msgPasswordCommon = "La contraseña es demasiado común."
	msgPasswordWrong  = "La contraseña actual es inválida."
	msgRequired       = "Campo requerido."
	msgOTPFormat      = "El código debe ser de 6 dígitos."
	msgOTPInvalid     = "Código inválido."
	msgAccountExists  = "Ya existe una cuenta con este email."
	msgCooldown       = "Volvé a intentar el registro en unos minutos."
	msgNoAccount      = "No se encontró una cuenta."
)

func validEmail(s string) bool {
	if s == "" || len(s) > 255 {
		return false
	}
	a, err := mail.ParseAddress(s)
	// rechaza "Nombre <x@y>": sólo la dirección desnuda
	return err == nil && a.Address == s
}

func containsScript(s string) bool {
	return strings.Contains(strings.ToLower(s), "<script")
}

func validName(s string, minLen int) bool {
	return utf8.RuneCountInString(s) >= minLen && !containsScript(s)
}

// passwordMessage devuelve "" si pwd cumple la política.
func passwordMessage(p password.Policy, pwd string) string {
	ok, reasons := p.Validate(pwd)
	if ok {
		return ""
	}
	for _, r := range reasons {
		if r != password.ReasonBlacklisted {
			return msgPassword
		}
	}
	return msgPasswordCommon
}

func normalizeSignup(in *dto.SignupRequest) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Gender = strings.TrimSpace(in.Gender)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

func validateSignup(p password.Policy, in dto.SignupRequest) map[string]string {
	errs := map[string]string{}
	if !validName(in.FirstName, 3) {
		errs["first_name"] = msgFirstName
	}
	if !validName(in.LastName, 2) {
		errs["last_name"] = msgLastName
	}
	if in.Gender == "" {
		errs["gender"] = msgGender
	}
	if !validEmail(in.Email) {
		errs["email"] = msgEmail
	}
	if m := passwordMessage(p, in.Password); m != "" {
		errs["password"] = m
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func otpMessage(code string) string {
	if !otp.WellFormed(code) {
		return msgOTPFormat
	}
	return ""
}
