package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPasswordResetRevokesAllSessions(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.SessionPolicy = MaxSessions(3) })
	env.register(t, "kate@example.com", "Old!Passw0rd")

	var tokens []string
	for i := 0; i < 3; i++ {
		tokens = append(tokens, env.login(t, "kate@example.com", "Old!Passw0rd").AccessToken)
	}

	msg, err := env.engine.RequestPasswordReset(clientCtx("198.51.100.9"), "Kate@Example.com")
	if err != nil || msg != MessageResetRequested {
		t.Fatalf("RequestPasswordReset = %q, %v", msg, err)
	}
	mail := env.mailer.next(t, "reset")
	if mail.to != "kate@example.com" {
		t.Fatalf("reset email sent to %q", mail.to)
	}

	if _, err := env.engine.ResetPassword(context.Background(), mail.token, "weak"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	msg, err = env.engine.ResetPassword(context.Background(), mail.token, "New!Passw0rd")
	if err != nil || msg != MessagePasswordUpdated {
		t.Fatalf("ResetPassword = %q, %v", msg, err)
	}

	for _, tok := range tokens {
		if _, err := env.engine.ValidateToken(context.Background(), tok); !errors.Is(err, ErrInvalidOrExpiredToken) {
			t.Fatalf("expected token revoked after reset, got %v", err)
		}
	}

	if _, err := env.engine.Authenticate(context.Background(), ProviderPassword, Credentials{Email: "kate@example.com", Password: "Old!Passw0rd"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	env.login(t, "kate@example.com", "New!Passw0rd")
}

func TestRequestPasswordResetDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t, nil)
	reg := env.register(t, "liam@example.com", "Secr3t!Word")
	if err := env.engine.DisableUser(context.Background(), reg.User.ID); err != nil {
		t.Fatalf("DisableUser failed: %v", err)
	}

	for _, email := range []string{"ghost@example.com", "liam@example.com"} {
		msg, err := env.engine.RequestPasswordReset(context.Background(), email)
		if err != nil || msg != MessageResetRequested {
			t.Fatalf("RequestPasswordReset(%s) = %q, %v", email, msg, err)
		}
	}

	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case m := <-env.mailer.ch:
			if m.kind == "reset" {
				t.Fatalf("no reset email expected, got one for %s", m.to)
			}
		case <-deadline:
			return
		}
	}
}

func TestRequestPasswordResetRateLimited(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := clientCtx("192.0.2.44")

	for i := 0; i < 5; i++ {
		if _, err := env.engine.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}
	if _, err := env.engine.RequestPasswordReset(ctx, "ghost@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestResetPasswordRejectsVerificationToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "mona@example.com", "Secr3t!Word")
	verification := env.mailer.next(t, "verification")

	if _, err := env.engine.ResetPassword(context.Background(), verification.token, "New!Passw0rd"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected verification token rejected for reset, got %v", err)
	}
}

func TestResetTokenExpires(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "nina@example.com", "Secr3t!Word")
	if _, err := env.engine.RequestPasswordReset(context.Background(), "nina@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	mail := env.mailer.next(t, "reset")

	env.clock.Advance(24*time.Hour + time.Minute)
	if _, err := env.engine.ResetPassword(context.Background(), mail.token, "New!Passw0rd"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected expired reset token rejected, got %v", err)
	}
}

func TestResetRequestDoesNotClearLoginFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "liam@example.com", "Secr3t!Word")
	ctx := clientCtx("192.0.2.44")

	guess := func() error {
		_, err := env.engine.Authenticate(ctx, ProviderPassword, Credentials{Email: "liam@example.com", Password: "Wr0ng!Word"})
		return err
	}
	for i := 0; i < 4; i++ {
		if err := guess(); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("guess %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	if _, err := env.engine.RequestPasswordReset(ctx, "liam@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	env.mailer.next(t, "reset")

	if err := guess(); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("fifth guess: expected ErrInvalidCredentials, got %v", err)
	}
	if err := guess(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected lockout to survive the reset request, got %v", err)
	}
}
