package authcore

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/password"
)

var (
	// ErrInvalidCredentials covers unknown accounts and wrong passwords alike.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrAccountDisabled is returned for deactivated accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrRateLimited is returned while the client IP or the account is blocked.
	ErrRateLimited = errors.New("too many failed attempts, try again later")
	// ErrWeakPassword is wrapped by *WeakPasswordError.
	ErrWeakPassword = errors.New("password does not meet strength requirements")
	// ErrEmailAlreadyUsed is returned when registering an email that exists.
	ErrEmailAlreadyUsed = errors.New("email already registered")
	// ErrInvalidOrExpiredToken covers signature, expiry, purpose and session
	// mismatches uniformly.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrSessionExpired is returned when the session row outlived its expiry.
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrInvalidOrExpiredToken)
	// ErrUnsupportedProvider is returned for an unknown provider kind.
	ErrUnsupportedProvider = errors.New("unsupported authentication provider")
	// ErrUpstreamProvider is returned when the identity provider exchange fails.
	ErrUpstreamProvider = errors.New("identity provider failure")
	// ErrStoreUnavailable wraps unexpected storage faults.
	ErrStoreUnavailable = errors.New("auth store unavailable")
	// ErrSessionNotFound is returned when revoking a session the user does not own.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCannotRevokeCurrent is returned when revoking the caller's own session by id.
	ErrCannotRevokeCurrent = errors.New("cannot revoke the current session, use logout")
	// ErrUserNotFound is returned by administrative operations on unknown ids.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// WeakPasswordError carries the full rules text. It never names the rule
// that failed.
type WeakPasswordError struct {
	Rules string
}

func (e *WeakPasswordError) Error() string {
	return ErrWeakPassword.Error() + ": " + e.Rules
}

func (e *WeakPasswordError) Unwrap() error {
	return ErrWeakPassword
}

func weakPassword() error {
	return &WeakPasswordError{Rules: password.StrengthRules}
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
