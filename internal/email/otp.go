package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	texttpl "text/template"
	"time"
)

//go:embed templates/*
var templatesFS embed.FS

// Purpose selecciona el template y el asunto.
type Purpose string

const (
	PurposeSignup   Purpose = "signup"
	PurposeRecovery Purpose = "recovery"
)

// OTPVars son las variables disponibles en los templates.
type OTPVars struct {
	App        string
	Name       string
	Code       string
	TTLMinutes int
}

type otpTemplate struct {
	subject string
	html    *template.Template
	text    *texttpl.Template
}

// OTPMailer renderiza y envía los códigos de verificación.
type OTPMailer struct {
	sender Sender
	app    string
	tpls   map[Purpose]otpTemplate
}

func NewOTPMailer(s Sender, appName string) (*OTPMailer, error) {
	m := &OTPMailer{sender: s, app: appName, tpls: map[Purpose]otpTemplate{}}
	subjects := map[Purpose]string{
		PurposeSignup:   "Tu código de verificación",
		PurposeRecovery: "Restablecer contraseña",
	}
	for p, subj := range subjects {
		h, err := template.ParseFS(templatesFS, "templates/"+string(p)+"_otp.html")
		if err != nil {
			return nil, fmt.Errorf("email: template %s html: %w", p, err)
		}
		t, err := texttpl.ParseFS(templatesFS, "templates/"+string(p)+"_otp.txt")
		if err != nil {
			return nil, fmt.Errorf("email: template %s txt: %w", p, err)
		}
		m.tpls[p] = otpTemplate{subject: subj, html: h, text: t}
	}
	return m, nil
}

// SendOTP envía code a to. El código nunca se loguea acá.
func (m *OTPMailer) SendOTP(ctx context.Context, p Purpose, to, name, code string, ttl time.Duration) error {
	tpl, ok := m.tpls[p]
	if !ok {
		return fmt.Errorf("email: unknown purpose %q", p)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	vars := OTPVars{App: m.app, Name: name, Code: code, TTLMinutes: int(ttl.Round(time.Minute) / time.Minute)}

	var hb, tb bytes.Buffer
	if err := tpl.html.Execute(&hb, vars); err != nil {
		return fmt.Errorf("email: render html: %w", err)
	}
	if err := tpl.text.Execute(&tb, vars); err != nil {
		return fmt.Errorf("email: render txt: %w", err)
	}
	return m.sender.Send(to, tpl.subject, hb.String(), tb.String())
}
