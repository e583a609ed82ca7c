package mail

import (
	"fmt"
	"mime"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/internal/pkg/config"
)

// Sender delivers a single HTML message.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	cfg      config.MailConfig
	log      *zap.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg config.MailConfig, lg *zap.Logger) *SMTPMailer {
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
		lg.Info("SMTP_SENDER not set, using default sender", zap.String("sender", cfg.Sender))
	}
	return &SMTPMailer{cfg: cfg, log: lg, sendMail: smtp.SendMail}
}

// Enabled reports whether an SMTP host is configured.
func (m *SMTPMailer) Enabled() bool {
	return m != nil && m.cfg.Host != ""
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	msg := BuildMessage(m.cfg.Sender, to, subject, body)

	err := m.sendMail(addr, auth, m.cfg.Sender, []string{to}, msg)
	if err != nil {
		m.log.Error("SMTP send error", zap.String("addr", addr), zap.Error(err))
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	m.log.Info("email sent", zap.String("to", to), zap.String("addr", addr))
	return nil
}

// BuildMessage renders the RFC 5322 message with an HTML body. The subject
// is written as an RFC 2047 encoded-word whenever it is not plain ASCII.
func BuildMessage(from, to, subject, body string) []byte {
	return []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, to, mime.QEncoding.Encode("utf-8", subject)) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)
}
