package flows

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Tracker is the brute-force tracker contract used by the flows.
type Tracker interface {
	IsBlocked(ctx context.Context, ip, identifier string) (bool, error)
	// Reserve atomically checks for a block and, when there is none,
	// charges a failed attempt to ip and identifier.
	Reserve(ctx context.Context, ip, identifier string) (bool, error)
	RecordAttempt(ctx context.Context, ip, identifier string, success bool) (bool, error)
	ResetAttempts(ctx context.Context, ip, identifier string) error
}

// MetricFunc adds n to the host metric id.
type MetricFunc func(id int, n uint64)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each method to the matching flow.
type Deps struct {
	PasswordLogin     PasswordLoginDeps
	OAuthLogin        OAuthLoginDeps
	Issue             IssueDeps
	Validate          ValidateDeps
	Sessions          SessionDeps
	PasswordReset     PasswordResetDeps
	EmailVerification EmailVerificationDeps
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nopMetric(int, uint64) {}

func nopLogger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
