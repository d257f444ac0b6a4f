// Package email entrega los códigos OTP de signup y recovery.
//
//	services/auth ──► OTPMailer (templates) ──► Sender
//	                                             ├─ SMTPSender (go-mail)
//	                                             ├─ LogSender  (dev)
//	                                             └─ Outbox     (tests)
package email
