package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestVerifyEmailFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	reg := env.register(t, "olga@example.com", "Secr3t!Word")
	mail := env.mailer.next(t, "verification")
	if mail.to != "olga@example.com" {
		t.Fatalf("verification sent to %q", mail.to)
	}

	msg, err := env.engine.VerifyEmail(context.Background(), mail.token)
	if err != nil || msg != MessageEmailVerified {
		t.Fatalf("VerifyEmail = %q, %v", msg, err)
	}

	user, err := env.engine.ValidateToken(context.Background(), reg.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if !user.Verified {
		t.Fatalf("expected user verified")
	}
}

func TestVerifyEmailRejectsResetToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "pete@example.com", "Secr3t!Word")
	env.mailer.next(t, "verification")
	if _, err := env.engine.RequestPasswordReset(context.Background(), "pete@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	reset := env.mailer.next(t, "reset")

	if _, err := env.engine.VerifyEmail(context.Background(), reset.token); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected reset token rejected for verification, got %v", err)
	}
	if _, err := env.engine.VerifyEmail(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected garbage rejected, got %v", err)
	}
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "quinn@example.com", "Secr3t!Word")
	env.mailer.next(t, "verification")

	for _, email := range []string{"quinn@example.com", "ghost@example.com"} {
		msg, err := env.engine.ResendVerification(context.Background(), email)
		if err != nil || msg != MessageVerificationSent {
			t.Fatalf("ResendVerification(%s) = %q, %v", email, msg, err)
		}
	}
	if mail := env.mailer.next(t, "verification"); mail.to != "quinn@example.com" {
		t.Fatalf("resend went to %q", mail.to)
	}
}
