package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	// TLSMode is "auto", "ssl" or "none".
	TLSMode            string
	InsecureSkipVerify bool
	// FrontendURL prefixes the links placed in email bodies.
	FrontendURL string
}

// SMTPSender delivers messages with go-mail.
type SMTPSender struct {
	cfg    SMTPConfig
	sender mail.Sender
}

// NewSMTPSender returns a sender that dials cfg.Host for every message.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// withSender replaces the SMTP transport.
func (s *SMTPSender) withSender(sender mail.Sender) *SMTPSender {
	s.sender = sender
	return s
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := s.compose(msg)
	if err != nil {
		return err
	}

	if s.sender != nil {
		if err := mail.Send(s.sender, m); err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	}

	if err := s.dialer().DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// SendVerificationEmail sends a verification link to to.
func (s *SMTPSender) SendVerificationEmail(ctx context.Context, to, token string) error {
	return s.Send(ctx, Message{Kind: KindVerification, To: to, Token: token})
}

// SendResetEmail sends a password reset link to to.
func (s *SMTPSender) SendResetEmail(ctx context.Context, to, token string) error {
	return s.Send(ctx, Message{Kind: KindReset, To: to, Token: token})
}

func (s *SMTPSender) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	}
	return d
}

func (s *SMTPSender) compose(msg Message) (*mail.Message, error) {
	subject, text, html, err := render(s.cfg.FrontendURL, msg)
	if err != nil {
		return nil, err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)
	return m, nil
}

// Link returns the frontend URL a message points at.
func Link(frontendURL string, msg Message) (string, error) {
	var path string
	switch msg.Kind {
	case KindVerification:
		path = "/verify-email"
	case KindReset:
		path = "/reset-password"
	default:
		return "", fmt.Errorf("notify: unknown message kind %d", msg.Kind)
	}
	return strings.TrimRight(frontendURL, "/") + path + "?token=" + url.QueryEscape(msg.Token), nil
}

func render(frontendURL string, msg Message) (subject, text, html string, err error) {
	link, err := Link(frontendURL, msg)
	if err != nil {
		return "", "", "", err
	}

	switch msg.Kind {
	case KindVerification:
		subject = "Verify your email address"
		text = "Confirm your email address by opening this link:\n\n" + link + "\n"
		html = `<p>Confirm your email address by opening this link:</p><p><a href="` + link + `">Verify email</a></p>`
	case KindReset:
		subject = "Reset your password"
		text = "A password reset was requested for your account. Open this link to choose a new password:\n\n" +
			link + "\n\nIf you did not request it, ignore this email.\n"
		html = `<p>A password reset was requested for your account.</p><p><a href="` + link +
			`">Choose a new password</a></p><p>If you did not request it, ignore this email.</p>`
	}
	return subject, text, html, nil
}

// LogSender writes messages to a logger instead of sending them.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender returns a sender for local development.
func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("email not sent (no SMTP configured)",
		zap.Stringer("kind", msg.Kind),
		zap.String("to", msg.To),
	)
	return nil
}
