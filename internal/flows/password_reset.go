package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/store"
	"go.uber.org/zap"
)

// ResetTokenBucket is the tracker identifier charged for bad reset tokens.
const ResetTokenBucket = "reset_token"

type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetRateLimited    int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	LogoutAll                   int
}

type PasswordResetErrors struct {
	RateLimited   error
	InvalidToken  error
	WeakPassword  func() error
	MapStoreError func(error) error
}

// PasswordResetDeps captures password reset dependencies.
type PasswordResetDeps struct {
	Users               store.UserStore
	Sessions            store.SessionStore
	Tracker             Tracker
	Hasher              PasswordHasher
	ValidateStrength    func(string) (bool, string)
	EncodeReset         func(userID string) (string, error)
	DecodeReset         func(token string) (string, error)
	SendReset           func(ctx context.Context, email, token string)
	ClientIPFromContext func(context.Context) string
	Log                 *zap.Logger
	MetricAdd           MetricFunc
	Metrics             PasswordResetMetrics
	Errors              PasswordResetErrors
}

// RunRequestPasswordReset queues a reset email when email belongs to an
// active account. The outcome is invisible to the caller: unknown and
// disabled accounts return nil too, and are charged to the tracker. A sent
// email leaves the tracker untouched; only a redeemed token clears it.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	email = NormalizeEmail(email)
	ip := deps.ClientIPFromContext(ctx)

	blocked, err := deps.Tracker.IsBlocked(ctx, ip, email)
	if err != nil {
		return deps.Errors.MapStoreError(err)
	}
	if blocked {
		deps.MetricAdd(deps.Metrics.PasswordResetRateLimited, 1)
		return deps.Errors.RateLimited
	}
	deps.MetricAdd(deps.Metrics.PasswordResetRequest, 1)

	user, err := deps.Users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return deps.Errors.MapStoreError(err)
	}
	if user == nil || !user.Active {
		if _, err := deps.Tracker.RecordAttempt(ctx, ip, email, false); err != nil {
			deps.Log.Warn("record reset request attempt", zap.Error(err))
		}
		return nil
	}

	token, err := deps.EncodeReset(user.ID)
	if err != nil {
		return err
	}
	deps.SendReset(ctx, user.Email, token)
	return nil
}

// RunResetPassword redeems a reset token, stores the new hash and deletes
// every session of the user.
func RunResetPassword(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	ip := deps.ClientIPFromContext(ctx)

	blocked, err := deps.Tracker.IsBlocked(ctx, ip, "")
	if err != nil {
		return deps.Errors.MapStoreError(err)
	}
	if blocked {
		deps.MetricAdd(deps.Metrics.PasswordResetRateLimited, 1)
		return deps.Errors.RateLimited
	}

	reject := func() error {
		deps.MetricAdd(deps.Metrics.PasswordResetConfirmFailure, 1)
		if _, err := deps.Tracker.RecordAttempt(ctx, ip, ResetTokenBucket, false); err != nil {
			deps.Log.Warn("record reset token attempt", zap.Error(err))
		}
		return deps.Errors.InvalidToken
	}

	userID, err := deps.DecodeReset(token)
	if err != nil {
		return reject()
	}
	user, err := deps.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reject()
		}
		return deps.Errors.MapStoreError(err)
	}

	if ok, _ := deps.ValidateStrength(newPassword); !ok {
		deps.MetricAdd(deps.Metrics.PasswordResetConfirmFailure, 1)
		return deps.Errors.WeakPassword()
	}
	hash, err := deps.Hasher.Hash(newPassword)
	if err != nil {
		deps.MetricAdd(deps.Metrics.PasswordResetConfirmFailure, 1)
		return deps.Errors.WeakPassword()
	}

	user.PasswordHash = hash
	if err := deps.Users.Update(ctx, user); err != nil {
		return deps.Errors.MapStoreError(err)
	}

	n, err := deps.Sessions.DeleteAllForUser(ctx, user.ID, "")
	if err != nil {
		return deps.Errors.MapStoreError(err)
	}
	deps.MetricAdd(deps.Metrics.LogoutAll, 1)
	deps.MetricAdd(deps.Metrics.PasswordResetConfirmSuccess, 1)
	deps.Log.Info("password reset", zap.String("user_id", user.ID), zap.Int("sessions_revoked", n))

	if err := deps.Tracker.ResetAttempts(ctx, ip, user.Email); err != nil {
		deps.Log.Warn("reset tracker after password reset", zap.Error(err))
	}
	return nil
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.SendReset == nil {
		deps.SendReset = func(context.Context, string, string) {}
	}
	if deps.MetricAdd == nil {
		deps.MetricAdd = nopMetric
	}
	if deps.Errors.MapStoreError == nil {
		deps.Errors.MapStoreError = func(err error) error { return err }
	}
	deps.Log = nopLogger(deps.Log)
}
