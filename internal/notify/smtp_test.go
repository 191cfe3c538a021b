package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	mail "github.com/go-mail/mail"
)

func TestLink(t *testing.T) {
	got, err := Link("https://app.example.com/", Message{Kind: KindVerification, Token: "a.b+c"})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if got != "https://app.example.com/verify-email?token=a.b%2Bc" {
		t.Fatalf("unexpected link %q", got)
	}

	got, err = Link("https://app.example.com", Message{Kind: KindReset, Token: "t"})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if got != "https://app.example.com/reset-password?token=t" {
		t.Fatalf("unexpected link %q", got)
	}

	if _, err := Link("x", Message{}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestSMTPSenderComposesMessage(t *testing.T) {
	var (
		from string
		to   []string
		body bytes.Buffer
	)
	s := NewSMTPSender(SMTPConfig{From: "noreply@example.com", FrontendURL: "https://app.example.com"}).
		withSender(mail.SendFunc(func(f string, rcpt []string, msg io.WriterTo) error {
			from, to = f, rcpt
			_, err := msg.WriteTo(&body)
			return err
		}))

	err := s.Send(context.Background(), Message{Kind: KindReset, To: "alice@example.com", Token: "tok123"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if from != "noreply@example.com" || len(to) != 1 || to[0] != "alice@example.com" {
		t.Fatalf("unexpected envelope from=%q to=%v", from, to)
	}
	raw := body.String()
	if !strings.Contains(raw, "Subject: Reset your password") {
		t.Fatalf("missing subject in %q", raw)
	}
	if !strings.Contains(raw, "reset-password?token=3Dtok123") && !strings.Contains(raw, "reset-password?token=tok123") {
		t.Fatalf("missing reset link in %q", raw)
	}
}

func TestSMTPSenderWrapsTransportError(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{From: "noreply@example.com"}).
		withSender(mail.SendFunc(func(string, []string, io.WriterTo) error {
			return errors.New("connection refused")
		}))

	err := s.Send(context.Background(), Message{Kind: KindVerification, To: "a@example.com", Token: "t"})
	if err == nil || !strings.Contains(err.Error(), "smtp send") {
		t.Fatalf("expected wrapped smtp error, got %v", err)
	}
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSMTPSender(SMTPConfig{})
	if err := s.Send(ctx, Message{Kind: KindVerification}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
