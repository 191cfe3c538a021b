package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal/flows"
)

// Logout deletes the session bound to token and reports whether one existed.
// Logging out twice is not an error.
func (e *Engine) Logout(ctx context.Context, token string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return flows.RunLogout(ctx, token, e.sessionDeps())
}

// ListSessions returns the live sessions of userID, newest first. The one
// bound to currentToken is flagged Current.
func (e *Engine) ListSessions(ctx context.Context, userID, currentToken string) ([]SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	views, err := flows.RunListSessions(ctx, userID, currentToken, e.sessionDeps())
	if err != nil {
		return nil, err
	}

	out := make([]SessionInfo, 0, len(views))
	for _, v := range views {
		out = append(out, SessionInfo{
			ID:        v.ID,
			IP:        v.IP,
			UserAgent: v.UserAgent,
			CreatedAt: v.CreatedAt,
			UpdatedAt: v.UpdatedAt,
			ExpiresAt: v.ExpiresAt,
			Current:   v.Current,
		})
	}
	return out, nil
}

// RevokeSession deletes one of userID's sessions. The session bound to
// currentToken cannot be revoked this way.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID, currentToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return flows.RunRevokeSession(ctx, userID, sessionID, currentToken, e.sessionDeps())
}

// RevokeAllSessions deletes every session of userID except the one bound to
// keepToken, if any, and returns how many were deleted.
func (e *Engine) RevokeAllSessions(ctx context.Context, userID, keepToken string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return flows.RunRevokeAllSessions(ctx, userID, keepToken, e.sessionDeps())
}

// PurgeExpiredSessions deletes expired and invalidated session rows.
func (e *Engine) PurgeExpiredSessions(ctx context.Context) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return flows.RunPurgeExpiredSessions(ctx, e.sessionDeps())
}

// DisableUser deactivates userID and deletes all of its sessions.
func (e *Engine) DisableUser(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return flows.RunSetUserActive(ctx, userID, false, e.sessionDeps())
}

// EnableUser reactivates userID.
func (e *Engine) EnableUser(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return flows.RunSetUserActive(ctx, userID, true, e.sessionDeps())
}
