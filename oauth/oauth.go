// Package oauth exchanges OpenID-Connect authorization codes for a verified
// external identity.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTimeout bounds one full exchange (token plus userinfo).
const DefaultTimeout = 30 * time.Second

// ErrExchange is returned when the provider rejects the code or cannot be reached.
var ErrExchange = errors.New("oauth exchange failed")

// ErrIncompleteIdentity is returned when the provider omits subject or email.
var ErrIncompleteIdentity = errors.New("oauth identity missing subject or email")

// Identity is the verified profile returned by the provider.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Config describes the provider endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// GoogleConfig returns Google's endpoints with the openid, email and profile scopes.
func GoogleConfig(clientID, clientSecret, redirectURL string) Config {
	return Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v3/userinfo",
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

// Client performs code exchanges. It is safe for concurrent use.
type Client struct {
	oauth       oauth2.Config
	userInfoURL string
	timeout     time.Duration
	httpClient  *http.Client
}

// NewClient validates cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, errors.New("oauth: client id, token url and userinfo url are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		userInfoURL: cfg.UserInfoURL,
		timeout:     cfg.Timeout,
		httpClient:  hc,
	}, nil
}

// AuthCodeURL returns the consent URL the browser is redirected to.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades code for a token and fetches the userinfo document. An
// empty redirectURI uses the configured one.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (*Identity, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: missing code", ErrExchange)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	var opts []oauth2.AuthCodeOption
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	tok, err := c.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	return c.userInfo(ctx, tok)
}

func (c *Client) userInfo(ctx context.Context, tok *oauth2.Token) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	tok.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: userinfo status %d: %s", ErrExchange, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var id Identity
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&id); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %v", ErrExchange, err)
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return &id, nil
}

// Validate reports whether the identity carries a subject and an email.
func (id *Identity) Validate() error {
	if id == nil || strings.TrimSpace(id.Subject) == "" || strings.TrimSpace(id.Email) == "" {
		return ErrIncompleteIdentity
	}
	return nil
}
