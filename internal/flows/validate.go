package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/store"
	"go.uber.org/zap"
)

type ValidateMetrics struct {
	ValidateSuccess       int
	ValidateFailure       int
	SessionExpired        int
	SessionCascadeRevoked int
}

type ValidateErrors struct {
	InvalidToken    error
	SessionExpired  error
	AccountDisabled error
	MapStoreError   func(error) error
}

// ValidateDeps captures token validation dependencies.
type ValidateDeps struct {
	Users    store.UserStore
	Sessions store.SessionStore
	// DecodeAccess verifies the signature and returns the token subject.
	DecodeAccess func(string) (string, error)
	Now          func() time.Time
	Log          *zap.Logger
	MetricAdd    MetricFunc
	Metrics      ValidateMetrics
	Errors       ValidateErrors
}

// RunValidateToken resolves a bearer token to its user. Both the session row
// and the signature must check out; either alone is not enough.
func RunValidateToken(ctx context.Context, token string, deps ValidateDeps) (*store.User, error) {
	normalizeValidateDeps(&deps)

	user, err := validateToken(ctx, token, deps)
	if err != nil {
		deps.MetricAdd(deps.Metrics.ValidateFailure, 1)
		return nil, err
	}
	deps.MetricAdd(deps.Metrics.ValidateSuccess, 1)
	return user, nil
}

func validateToken(ctx context.Context, token string, deps ValidateDeps) (*store.User, error) {
	if token == "" {
		return nil, deps.Errors.InvalidToken
	}
	now := deps.Now()

	sess, err := deps.Sessions.GetByTokenHash(ctx, store.HashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, deps.Errors.InvalidToken
		}
		return nil, deps.Errors.MapStoreError(err)
	}

	if !now.Before(sess.ExpiresAt) {
		if err := deps.Sessions.Invalidate(ctx, sess.ID); err != nil {
			deps.Log.Warn("invalidate expired session", zap.String("session_id", sess.ID), zap.Error(err))
		}
		deps.MetricAdd(deps.Metrics.SessionExpired, 1)
		return nil, deps.Errors.SessionExpired
	}

	subject, err := deps.DecodeAccess(token)
	if err != nil {
		return nil, deps.Errors.InvalidToken
	}
	if subject != sess.UserID {
		deps.Log.Warn("token subject does not match session owner", zap.String("session_id", sess.ID))
		return nil, deps.Errors.InvalidToken
	}

	user, err := deps.Users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, deps.Errors.InvalidToken
		}
		return nil, deps.Errors.MapStoreError(err)
	}

	if !user.Active {
		n, err := deps.Sessions.DeleteAllForUser(ctx, user.ID, "")
		if err != nil {
			deps.Log.Warn("revoke sessions of disabled account", zap.String("user_id", user.ID), zap.Error(err))
		}
		deps.MetricAdd(deps.Metrics.SessionCascadeRevoked, uint64(n))
		return nil, deps.Errors.AccountDisabled
	}

	if err := deps.Sessions.Touch(ctx, sess.ID, now); err != nil {
		deps.Log.Warn("touch session", zap.String("session_id", sess.ID), zap.Error(err))
	}
	return user, nil
}

func normalizeValidateDeps(deps *ValidateDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricAdd == nil {
		deps.MetricAdd = nopMetric
	}
	if deps.Errors.MapStoreError == nil {
		deps.Errors.MapStoreError = func(err error) error { return err }
	}
	deps.Log = nopLogger(deps.Log)
}
