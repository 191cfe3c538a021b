package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IssueResult is the minted credential.
type IssueResult struct {
	Token     string
	ExpiresAt time.Time
	SessionID string
}

type IssueMetrics struct {
	SessionCreated int
	SessionEvicted int
}

// IssueDeps captures session issuance dependencies.
type IssueDeps struct {
	Users                store.UserStore
	Sessions             store.SessionStore
	MaxLive              int
	EncodeAccess         func(*store.User) (string, time.Time, error)
	Now                  func() time.Time
	ClientIPFromContext  func(context.Context) string
	UserAgentFromContext func(context.Context) string
	Log                  *zap.Logger
	MetricAdd            MetricFunc
	Metrics              IssueMetrics
	MapStoreError        func(error) error
}

// RunIssueSession records the login, mints an access token and persists its
// session row. The store evicts the user's oldest live sessions in the same
// atomic step, so the live count never exceeds MaxLive.
func RunIssueSession(ctx context.Context, user *store.User, deps IssueDeps) (IssueResult, error) {
	normalizeIssueDeps(&deps)
	now := deps.Now()

	user.LastLogin = now
	if err := deps.Users.Update(ctx, user); err != nil {
		deps.Log.Warn("update last_login", zap.String("user_id", user.ID), zap.Error(err))
	}

	token, expiresAt, err := deps.EncodeAccess(user)
	if err != nil {
		return IssueResult{}, err
	}

	ip, ua := store.ClampClientMeta(deps.ClientIPFromContext(ctx), deps.UserAgentFromContext(ctx))
	sess := &store.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: store.HashToken(token),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
		Valid:     true,
		IP:        ip,
		UserAgent: ua,
	}

	evicted, err := deps.Sessions.Create(ctx, sess, deps.MaxLive)
	if err != nil {
		return IssueResult{}, deps.MapStoreError(err)
	}

	deps.MetricAdd(deps.Metrics.SessionCreated, 1)
	if evicted > 0 {
		deps.MetricAdd(deps.Metrics.SessionEvicted, uint64(evicted))
		deps.Log.Debug("evicted sessions", zap.String("user_id", user.ID), zap.Int("count", evicted))
	}

	return IssueResult{Token: token, ExpiresAt: expiresAt, SessionID: sess.ID}, nil
}

func normalizeIssueDeps(deps *IssueDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.UserAgentFromContext == nil {
		deps.UserAgentFromContext = func(context.Context) string { return "" }
	}
	if deps.MetricAdd == nil {
		deps.MetricAdd = nopMetric
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	deps.Log = nopLogger(deps.Log)
}
