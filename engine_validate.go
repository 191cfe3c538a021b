package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
)

// ValidateToken resolves a bearer token to its user. The session row must be
// valid and unexpired and the token signature must verify; the two checks are
// independent. A disabled owner has every session revoked.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	return flows.RunValidateToken(ctx, token, e.validateDeps())
}
