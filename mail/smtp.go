// Package mail delivers the service's notification emails over SMTP.
package mail

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"
)

// Config carries the SMTP endpoint and sender identity.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends plain text mail through a single SMTP endpoint. It
// satisfies auth.Mailer.
type SMTPMailer struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = "FootHub Team <no-reply@foothub.com>"
	}
	return &SMTPMailer{
		cfg:  cfg,
		send: smtp.SendMail,
	}
}

// Send delivers one message. The context only gates the attempt: net/smtp
// does not support cancellation mid-session.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	msg := BuildMessage(m.cfg.From, to, subject, body)

	// The envelope sender must be a bare address even when the From header
	// carries a display name.
	envelopeFrom := m.cfg.From
	if parsed, err := mail.ParseAddress(m.cfg.From); err == nil {
		envelopeFrom = parsed.Address
	}

	if err := m.send(addr, auth, envelopeFrom, []string{to}, msg); err != nil {
		return fmt.Errorf("mail: failed to send to %s: %w", to, err)
	}

	return nil
}

// BuildMessage assembles a minimal RFC 5322 plain text message.
func BuildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
