package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal/flows"
)

// RequestPasswordReset queues a reset email for an active account. The
// returned message never reveals whether the account exists; only
// ErrRateLimited and storage faults are reported.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := flows.RunRequestPasswordReset(ctx, email, e.passwordResetDeps()); err != nil {
		return "", err
	}
	return MessageResetRequested, nil
}

// ResetPassword redeems a reset token. On success every session of the
// user is revoked.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := flows.RunResetPassword(ctx, token, newPassword, e.passwordResetDeps()); err != nil {
		return "", err
	}
	return MessagePasswordUpdated, nil
}
