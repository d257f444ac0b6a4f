package email

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dropDatabas3/stagegate/internal/observability/logger"
)

// Sender es la interfaz para enviar emails.
type Sender interface {
	// Send envía un email con contenido HTML y texto plano.
	// El destinatario recibe ambas versiones como multipart/alternative.
	Send(to string, subject string, htmlBody string, textBody string) error
}

// LogSender no envía nada: escribe el mensaje en el log. Sólo para dev.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(l *zap.Logger) *LogSender {
	if l == nil {
		l = logger.L()
	}
	return &LogSender{log: l.With(logger.Component("email.log"))}
}

func (s *LogSender) Send(to, subject, htmlBody, textBody string) error {
	s.log.Info("email_not_sent_dev",
		logger.String("to", to),
		logger.String("subject", subject),
		logger.String("text", textBody),
	)
	return nil
}

// Message es un email capturado por Outbox.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Outbox captura mensajes en memoria (tests).
type Outbox struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (o *Outbox) Send(to, subject, htmlBody, textBody string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.msgs = append(o.msgs, Message{To: to, Subject: subject, HTML: htmlBody, Text: textBody})
	return nil
}

func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.msgs))
	copy(out, o.msgs)
	return out
}

// Last devuelve el último mensaje enviado a to.
func (o *Outbox) Last(to string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].To == to {
			return o.msgs[i], true
		}
	}
	return Message{}, false
}
