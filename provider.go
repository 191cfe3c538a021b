package authcore

import (
	"context"
	"strings"

	"github.com/MrEthical07/authcore/internal/flows"
)

// ProviderKind selects the authentication provider.
type ProviderKind uint8

const (
	// ProviderPassword authenticates with email and password.
	ProviderPassword ProviderKind = iota + 1
	// ProviderOAuth authenticates with an external identity provider.
	ProviderOAuth
)

func (k ProviderKind) String() string {
	switch k {
	case ProviderPassword:
		return "password"
	case ProviderOAuth:
		return "oauth"
	default:
		return "unknown"
	}
}

// ParseProviderKind maps a provider name to its kind. "google" is accepted
// as an alias for the OAuth provider.
func ParseProviderKind(name string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "password":
		return ProviderPassword, nil
	case "oauth", "google":
		return ProviderOAuth, nil
	default:
		return 0, ErrUnsupportedProvider
	}
}

// Provider produces or locates the user behind a set of credentials.
type Provider interface {
	Kind() ProviderKind
	Authenticate(ctx context.Context, creds Credentials) (*User, error)
	Register(ctx context.Context, creds Credentials) (*User, error)
}

type passwordProvider struct {
	engine *Engine
}

func (p passwordProvider) Kind() ProviderKind { return ProviderPassword }

func (p passwordProvider) Authenticate(ctx context.Context, creds Credentials) (*User, error) {
	return flows.RunPasswordLogin(ctx, creds.Email, creds.Password, p.engine.passwordLoginDeps())
}

func (p passwordProvider) Register(ctx context.Context, creds Credentials) (*User, error) {
	return flows.RunPasswordRegister(ctx, creds.Email, creds.Password, creds.FullName, p.engine.passwordLoginDeps())
}

type oauthProvider struct {
	engine *Engine
}

func (p oauthProvider) Kind() ProviderKind { return ProviderOAuth }

func (p oauthProvider) Authenticate(ctx context.Context, creds Credentials) (*User, error) {
	deps := p.engine.oauthLoginDeps()
	identity, err := flows.ResolveIdentity(ctx, creds.Identity, creds.Code, creds.RedirectURI, deps)
	if err != nil {
		return nil, err
	}
	return flows.RunOAuthLogin(ctx, identity, deps)
}

func (p oauthProvider) Register(ctx context.Context, creds Credentials) (*User, error) {
	deps := p.engine.oauthLoginDeps()
	identity, err := flows.ResolveIdentity(ctx, creds.Identity, creds.Code, creds.RedirectURI, deps)
	if err != nil {
		return nil, err
	}
	return flows.RunOAuthRegister(ctx, identity, deps)
}

func (e *Engine) provider(kind ProviderKind) (Provider, error) {
	p, ok := e.providers[kind]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return p, nil
}
