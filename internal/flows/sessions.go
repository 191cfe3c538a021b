package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/store"
	"go.uber.org/zap"
)

type SessionMetrics struct {
	Logout          int
	LogoutAll       int
	SessionsPurged  int
	AccountDisabled int
	AccountEnabled  int
}

type SessionErrors struct {
	SessionNotFound     error
	CannotRevokeCurrent error
	UserNotFound        error
	MapStoreError       func(error) error
}

// SessionDeps captures logout and session management dependencies.
type SessionDeps struct {
	Users     store.UserStore
	Sessions  store.SessionStore
	Now       func() time.Time
	Log       *zap.Logger
	MetricAdd MetricFunc
	Metrics   SessionMetrics
	Errors    SessionErrors
}

// SessionView is a live session as seen by its owner.
type SessionView struct {
	store.Session
	Current bool
}

// RunLogout deletes the session bound to token. It reports whether a row
// existed; a second call is a no-op.
func RunLogout(ctx context.Context, token string, deps SessionDeps) (bool, error) {
	normalizeSessionDeps(&deps)
	if token == "" {
		return false, nil
	}

	ok, err := deps.Sessions.DeleteByTokenHash(ctx, store.HashToken(token))
	if err != nil {
		return false, deps.Errors.MapStoreError(err)
	}
	if ok {
		deps.MetricAdd(deps.Metrics.Logout, 1)
	}
	return ok, nil
}

// RunListSessions returns userID's live sessions, newest first, flagging the
// one bound to currentToken.
func RunListSessions(ctx context.Context, userID, currentToken string, deps SessionDeps) ([]SessionView, error) {
	normalizeSessionDeps(&deps)

	rows, err := deps.Sessions.ListForUser(ctx, userID, deps.Now())
	if err != nil {
		return nil, deps.Errors.MapStoreError(err)
	}

	currentHash := ""
	if currentToken != "" {
		currentHash = store.HashToken(currentToken)
	}

	out := make([]SessionView, 0, len(rows))
	for _, row := range rows {
		out = append(out, SessionView{
			Session: row,
			Current: currentHash != "" && row.TokenHash == currentHash,
		})
	}
	return out, nil
}

// RunRevokeSession deletes one of userID's sessions other than the current one.
func RunRevokeSession(ctx context.Context, userID, sessionID, currentToken string, deps SessionDeps) error {
	normalizeSessionDeps(&deps)

	if currentToken != "" {
		current, err := deps.Sessions.GetByTokenHash(ctx, store.HashToken(currentToken))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return deps.Errors.MapStoreError(err)
		}
		if current != nil && current.ID == sessionID {
			return deps.Errors.CannotRevokeCurrent
		}
	}

	ok, err := deps.Sessions.DeleteByID(ctx, userID, sessionID)
	if err != nil {
		return deps.Errors.MapStoreError(err)
	}
	if !ok {
		return deps.Errors.SessionNotFound
	}
	deps.MetricAdd(deps.Metrics.Logout, 1)
	return nil
}

// RunRevokeAllSessions deletes every session of userID, keeping the one
// bound to keepToken when it is set and belongs to userID.
func RunRevokeAllSessions(ctx context.Context, userID, keepToken string, deps SessionDeps) (int, error) {
	normalizeSessionDeps(&deps)

	exceptID := ""
	if keepToken != "" {
		keep, err := deps.Sessions.GetByTokenHash(ctx, store.HashToken(keepToken))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return 0, deps.Errors.MapStoreError(err)
		}
		if keep != nil && keep.UserID == userID {
			exceptID = keep.ID
		}
	}

	n, err := deps.Sessions.DeleteAllForUser(ctx, userID, exceptID)
	if err != nil {
		return 0, deps.Errors.MapStoreError(err)
	}
	deps.MetricAdd(deps.Metrics.LogoutAll, 1)
	return n, nil
}

// RunPurgeExpiredSessions deletes expired and invalidated rows.
func RunPurgeExpiredSessions(ctx context.Context, deps SessionDeps) (int, error) {
	normalizeSessionDeps(&deps)

	n, err := deps.Sessions.PurgeExpired(ctx, deps.Now())
	if err != nil {
		return 0, deps.Errors.MapStoreError(err)
	}
	deps.MetricAdd(deps.Metrics.SessionsPurged, uint64(n))
	deps.Log.Info("purged sessions", zap.Int("count", n))
	return n, nil
}

// RunSetUserActive flips the active flag. Disabling also deletes every
// session of the user.
func RunSetUserActive(ctx context.Context, userID string, active bool, deps SessionDeps) error {
	normalizeSessionDeps(&deps)

	user, err := deps.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return deps.Errors.UserNotFound
		}
		return deps.Errors.MapStoreError(err)
	}

	if user.Active != active {
		user.Active = active
		if err := deps.Users.Update(ctx, user); err != nil {
			return deps.Errors.MapStoreError(err)
		}
	}

	if active {
		deps.MetricAdd(deps.Metrics.AccountEnabled, 1)
		return nil
	}

	n, err := deps.Sessions.DeleteAllForUser(ctx, userID, "")
	if err != nil {
		return deps.Errors.MapStoreError(err)
	}
	deps.MetricAdd(deps.Metrics.AccountDisabled, 1)
	deps.Log.Info("account disabled", zap.String("user_id", userID), zap.Int("sessions_revoked", n))
	return nil
}

func normalizeSessionDeps(deps *SessionDeps) {
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
