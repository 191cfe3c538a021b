package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store"
	"go.uber.org/zap"
)

// Messages returned by the account recovery operations. The reset request
// message is identical whether or not the account exists.
const (
	MessageResetRequested   = "If an account exists for this email address, a password reset link has been sent."
	MessagePasswordUpdated  = "Password updated."
	MessageEmailVerified    = "Email verified."
	MessageVerificationSent = "If an unverified account exists for this email address, a verification link has been sent."
)

// Engine is the authentication core. It is safe for concurrent use once
// built.
type Engine struct {
	config      Config
	users       store.UserStore
	sessions    store.SessionStore
	tracker     attemptTracker
	codec       *jwt.Codec
	hasher      *password.Argon2
	oauthClient *oauth.Client
	notifier    *notify.Dispatcher
	metrics     *Metrics
	log         *zap.Logger
	now         func() time.Time
	providers   map[ProviderKind]Provider
}

type attemptTracker = flows.Tracker

// localTracker adapts the in-process tracker to the context-aware contract.
type localTracker struct {
	t *limiters.BruteForceTracker
}

func (l localTracker) IsBlocked(_ context.Context, ip, identifier string) (bool, error) {
	return l.t.IsBlocked(ip, identifier), nil
}

func (l localTracker) Reserve(_ context.Context, ip, identifier string) (bool, error) {
	return l.t.Reserve(ip, identifier), nil
}

func (l localTracker) RecordAttempt(_ context.Context, ip, identifier string, success bool) (bool, error) {
	return l.t.RecordAttempt(ip, identifier, success), nil
}

func (l localTracker) ResetAttempts(_ context.Context, ip, identifier string) error {
	l.t.ResetAttempts(ip, identifier)
	return nil
}

// Close drains the email queue.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.notifier != nil {
		e.notifier.Close()
	}
}

// NotifyDropped returns the number of emails dropped because the queue was
// full.
func (e *Engine) NotifyDropped() uint64 {
	if e == nil || e.notifier == nil {
		return 0
	}
	return e.notifier.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// SessionPolicy returns the configured session policy.
func (e *Engine) SessionPolicy() SessionPolicy {
	return e.config.SessionPolicy
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.sessions == nil || e.codec == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricAdd(id int, n uint64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Add(MetricID(id), n)
}

func (e *Engine) encodeAccess(u *store.User) (string, time.Time, error) {
	claims := jwt.AccessClaims{
		Email:     u.Email,
		Active:    u.Active,
		Verified:  u.Verified,
		Superuser: u.Superuser,
	}
	claims.Subject = u.ID

	token, minted, err := e.codec.EncodeAccess(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, minted.ExpiresAt.Time, nil
}

func (e *Engine) decodeAccess(token string) (string, error) {
	claims, err := e.codec.DecodeAccess(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (e *Engine) decodeSpecial(purpose jwt.Purpose) func(string) (string, error) {
	return func(token string) (string, error) {
		claims, err := e.codec.DecodeSpecial(token, purpose)
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}
}

func (e *Engine) encodeSpecial(purpose jwt.Purpose) func(string) (string, error) {
	return func(userID string) (string, error) {
		return e.codec.EncodeSpecial(userID, purpose)
	}
}

func (e *Engine) exchangeCode(ctx context.Context, code, redirectURI string) (*oauth.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.OAuth.ExchangeTimeout)
	defer cancel()
	return e.oauthClient.Exchange(ctx, code, redirectURI)
}

func (e *Engine) passwordLoginDeps() flows.PasswordLoginDeps {
	verification := e.emailVerificationDeps()
	return flows.PasswordLoginDeps{
		Users:               e.users,
		Tracker:             e.tracker,
		Hasher:              e.hasher,
		ValidateStrength:    password.ValidateStrength,
		UpgradeOnLogin:      e.config.Password.UpgradeOnLogin,
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		SendVerification: func(ctx context.Context, u *store.User) {
			flows.SendVerificationFor(ctx, u, verification)
		},
		Log:       e.log,
		MetricAdd: e.metricAdd,
		Metrics: flows.LoginMetrics{
			LoginSuccess:         int(MetricLoginSuccess),
			LoginFailure:         int(MetricLoginFailure),
			LoginRateLimited:     int(MetricLoginRateLimited),
			PasswordRehashed:     int(MetricPasswordRehashed),
			RegisterSuccess:      int(MetricRegisterSuccess),
			RegisterDuplicate:    int(MetricRegisterDuplicate),
			RegisterWeakPassword: int(MetricRegisterWeakPassword),
		},
		Errors: flows.LoginErrors{
			InvalidCredentials: ErrInvalidCredentials,
			AccountDisabled:    ErrAccountDisabled,
			RateLimited:        ErrRateLimited,
			EmailAlreadyUsed:   ErrEmailAlreadyUsed,
			WeakPassword:       weakPassword,
			MapStoreError:      storeError,
		},
	}
}

func (e *Engine) oauthLoginDeps() flows.OAuthLoginDeps {
	deps := flows.OAuthLoginDeps{
		Users:     e.users,
		Now:       e.now,
		Log:       e.log,
		MetricAdd: e.metricAdd,
		Metrics: flows.OAuthMetrics{
			LoginSuccess:            int(MetricLoginSuccess),
			RegisterSuccess:         int(MetricRegisterSuccess),
			RegisterDuplicate:       int(MetricRegisterDuplicate),
			UpstreamProviderFailure: int(MetricUpstreamProviderFailure),
		},
		Errors: flows.OAuthErrors{
			AccountDisabled:    ErrAccountDisabled,
			EmailAlreadyUsed:   ErrEmailAlreadyUsed,
			UpstreamProvider:   ErrUpstreamProvider,
			InvalidCredentials: ErrInvalidCredentials,
			MapStoreError:      storeError,
		},
	}
	if e.oauthClient != nil {
		deps.Exchange = e.exchangeCode
	}
	return deps
}

func (e *Engine) issueDeps() flows.IssueDeps {
	return flows.IssueDeps{
		Users:                e.users,
		Sessions:             e.sessions,
		MaxLive:              e.config.SessionPolicy.Limit(),
		EncodeAccess:         e.encodeAccess,
		Now:                  e.now,
		ClientIPFromContext:  clientIPFromContext,
		UserAgentFromContext: userAgentFromContext,
		Log:                  e.log,
		MetricAdd:            e.metricAdd,
		Metrics: flows.IssueMetrics{
			SessionCreated: int(MetricSessionCreated),
			SessionEvicted: int(MetricSessionEvicted),
		},
		MapStoreError: storeError,
	}
}

func (e *Engine) validateDeps() flows.ValidateDeps {
	return flows.ValidateDeps{
		Users:        e.users,
		Sessions:     e.sessions,
		DecodeAccess: e.decodeAccess,
		Now:          e.now,
		Log:          e.log,
		MetricAdd:    e.metricAdd,
		Metrics: flows.ValidateMetrics{
			ValidateSuccess:       int(MetricValidateSuccess),
			ValidateFailure:       int(MetricValidateFailure),
			SessionExpired:        int(MetricSessionExpired),
			SessionCascadeRevoked: int(MetricSessionCascadeRevoked),
		},
		Errors: flows.ValidateErrors{
			InvalidToken:    ErrInvalidOrExpiredToken,
			SessionExpired:  ErrSessionExpired,
			AccountDisabled: ErrAccountDisabled,
			MapStoreError:   storeError,
		},
	}
}

func (e *Engine) sessionDeps() flows.SessionDeps {
	return flows.SessionDeps{
		Users:     e.users,
		Sessions:  e.sessions,
		Now:       e.now,
		Log:       e.log,
		MetricAdd: e.metricAdd,
		Metrics: flows.SessionMetrics{
			Logout:          int(MetricLogout),
			LogoutAll:       int(MetricLogoutAll),
			SessionsPurged:  int(MetricSessionsPurged),
			AccountDisabled: int(MetricAccountDisabled),
			AccountEnabled:  int(MetricAccountEnabled),
		},
		Errors: flows.SessionErrors{
			SessionNotFound:     ErrSessionNotFound,
			CannotRevokeCurrent: ErrCannotRevokeCurrent,
			UserNotFound:        ErrUserNotFound,
			MapStoreError:       storeError,
		},
	}
}

func (e *Engine) passwordResetDeps() flows.PasswordResetDeps {
	return flows.PasswordResetDeps{
		Users:               e.users,
		Sessions:            e.sessions,
		Tracker:             e.tracker,
		Hasher:              e.hasher,
		ValidateStrength:    password.ValidateStrength,
		EncodeReset:         e.encodeSpecial(jwt.PurposeReset),
		DecodeReset:         e.decodeSpecial(jwt.PurposeReset),
		SendReset:           e.notifier.SendReset,
		ClientIPFromContext: clientIPFromContext,
		Log:                 e.log,
		MetricAdd:           e.metricAdd,
		Metrics: flows.PasswordResetMetrics{
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetRateLimited:    int(MetricPasswordResetRateLimited),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
			LogoutAll:                   int(MetricLogoutAll),
		},
		Errors: flows.PasswordResetErrors{
			RateLimited:   ErrRateLimited,
			InvalidToken:  ErrInvalidOrExpiredToken,
			WeakPassword:  weakPassword,
			MapStoreError: storeError,
		},
	}
}

func (e *Engine) emailVerificationDeps() flows.EmailVerificationDeps {
	return flows.EmailVerificationDeps{
		Users:              e.users,
		EncodeVerification: e.encodeSpecial(jwt.PurposeVerification),
		DecodeVerification: e.decodeSpecial(jwt.PurposeVerification),
		SendVerification:   e.notifier.SendVerification,
		Log:                e.log,
		MetricAdd:          e.metricAdd,
		Metrics: flows.EmailVerificationMetrics{
			EmailVerificationRequest: int(MetricEmailVerificationRequest),
			EmailVerificationSuccess: int(MetricEmailVerificationSuccess),
			EmailVerificationFailure: int(MetricEmailVerificationFailure),
		},
		Errors: flows.EmailVerificationErrors{
			InvalidToken:  ErrInvalidOrExpiredToken,
			MapStoreError: storeError,
		},
	}
}
