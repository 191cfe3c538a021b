package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/store"
	"go.uber.org/zap"
)

type EmailVerificationMetrics struct {
	EmailVerificationRequest int
	EmailVerificationSuccess int
	EmailVerificationFailure int
}

type EmailVerificationErrors struct {
	InvalidToken  error
	MapStoreError func(error) error
}

// EmailVerificationDeps captures email verification dependencies.
type EmailVerificationDeps struct {
	Users              store.UserStore
	EncodeVerification func(userID string) (string, error)
	DecodeVerification func(token string) (string, error)
	SendVerification   func(ctx context.Context, email, token string)
	Log                *zap.Logger
	MetricAdd          MetricFunc
	Metrics            EmailVerificationMetrics
	Errors             EmailVerificationErrors
}

// RunVerifyEmail marks the token's subject as verified. Verifying twice is
// not an error.
func RunVerifyEmail(ctx context.Context, token string, deps EmailVerificationDeps) error {
	normalizeEmailVerificationDeps(&deps)

	userID, err := deps.DecodeVerification(token)
	if err != nil {
		deps.MetricAdd(deps.Metrics.EmailVerificationFailure, 1)
		return deps.Errors.InvalidToken
	}

	user, err := deps.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deps.MetricAdd(deps.Metrics.EmailVerificationFailure, 1)
			return deps.Errors.InvalidToken
		}
		return deps.Errors.MapStoreError(err)
	}

	if !user.Verified {
		user.Verified = true
		if err := deps.Users.Update(ctx, user); err != nil {
			return deps.Errors.MapStoreError(err)
		}
	}
	deps.MetricAdd(deps.Metrics.EmailVerificationSuccess, 1)
	return nil
}

// SendVerificationFor mints a verification token for user and queues the
// email. Failures are logged only.
func SendVerificationFor(ctx context.Context, user *store.User, deps EmailVerificationDeps) {
	normalizeEmailVerificationDeps(&deps)

	token, err := deps.EncodeVerification(user.ID)
	if err != nil {
		deps.Log.Warn("mint verification token", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	deps.MetricAdd(deps.Metrics.EmailVerificationRequest, 1)
	deps.SendVerification(ctx, user.Email, token)
}

// RunResendVerification queues a new verification email for an active,
// unverified account. Other cases are silently ignored.
func RunResendVerification(ctx context.Context, email string, deps EmailVerificationDeps) error {
	normalizeEmailVerificationDeps(&deps)

	user, err := deps.Users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return deps.Errors.MapStoreError(err)
	}
	if !user.Active || user.Verified {
		return nil
	}
	SendVerificationFor(ctx, user, deps)
	return nil
}

func normalizeEmailVerificationDeps(deps *EmailVerificationDeps) {
	if deps.SendVerification == nil {
		deps.SendVerification = func(context.Context, string, string) {}
	}
	if deps.MetricAdd == nil {
		deps.MetricAdd = nopMetric
	}
	if deps.Errors.MapStoreError == nil {
		deps.Errors.MapStoreError = func(err error) error { return err }
	}
	deps.Log = nopLogger(deps.Log)
}
