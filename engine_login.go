package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal/flows"
)

// Authenticate logs in through the selected provider and issues a session.
// Under SingleSession the user's previous session stops validating.
func (e *Engine) Authenticate(ctx context.Context, kind ProviderKind, creds Credentials) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.provider(kind)
	if err != nil {
		return nil, err
	}

	user, err := p.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}
	return e.issue(ctx, user)
}

// Register creates an account through the selected provider and issues a
// session. Password accounts start unverified and are sent a verification
// email; delivery failures do not fail registration.
func (e *Engine) Register(ctx context.Context, kind ProviderKind, creds Credentials) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.provider(kind)
	if err != nil {
		return nil, err
	}

	user, err := p.Register(ctx, creds)
	if err != nil {
		return nil, err
	}
	return e.issue(ctx, user)
}

func (e *Engine) issue(ctx context.Context, user *User) (*AuthResult, error) {
	res, err := flows.RunIssueSession(ctx, user, e.issueDeps())
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken: res.Token,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   res.ExpiresAt,
		User:        NewPublicUser(user),
	}, nil
}
