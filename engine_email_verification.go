package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal/flows"
)

// VerifyEmail redeems a verification token.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := flows.RunVerifyEmail(ctx, token, e.emailVerificationDeps()); err != nil {
		return "", err
	}
	return MessageEmailVerified, nil
}

// ResendVerification queues a new verification email. The message is the
// same whether or not anything was sent.
func (e *Engine) ResendVerification(ctx context.Context, email string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := flows.RunResendVerification(ctx, email, e.emailVerificationDeps()); err != nil {
		return "", err
	}
	return MessageVerificationSent, nil
}
