package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/store"
)

// TokenTypeBearer is the token type reported in every AuthResult.
const TokenTypeBearer = "bearer"

// User is the identity record managed by the engine.
type User = store.User

// Session is one issued, revocable credential.
type Session = store.Session

// PublicUser is the projection of a User that may leave the service.
type PublicUser struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Verified       bool   `json:"is_verified"`
}

// NewPublicUser projects u. Password hash and internal flags are dropped.
func NewPublicUser(u *User) PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		ProfilePicture: u.ProfilePicture,
		Verified:       u.Verified,
	}
}

// AuthResult is returned by Authenticate and Register.
type AuthResult struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresAt   time.Time  `json:"expires_at"`
	User        PublicUser `json:"user"`
}

// Credentials is the provider-neutral login or registration input.
//
// The password provider reads Email, Password and FullName. The OAuth provider
// reads Identity when the caller has already verified it, otherwise it
// exchanges Code (and RedirectURI) with the configured identity provider.
type Credentials struct {
	Email    string
	Password string
	FullName string

	Code        string
	RedirectURI string
	Identity    *oauth.Identity
}

// SessionInfo describes one live session of a user.
type SessionInfo struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}
