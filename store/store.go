package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when creating a user whose email is taken.
	ErrDuplicateEmail = errors.New("email already exists")
)

const (
	// MaxIPLength is the stored width of Session.IP.
	MaxIPLength = 45
	// MaxUserAgentLength is the stored width of Session.UserAgent.
	MaxUserAgentLength = 255
)

// User is the identity record.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	Active         bool
	Verified       bool
	Superuser      bool
	OIDCSubject    string
	FullName       string
	ProfilePicture string
	CreatedAt      time.Time
	LastLogin      time.Time
}

// HasCredential reports whether the user can authenticate by at least one path.
func (u *User) HasCredential() bool {
	return u != nil && (u.PasswordHash != "" || u.OIDCSubject != "")
}

// Session is one issued, revocable credential.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
	Valid     bool
	IP        string
	UserAgent string
}

// Live reports whether s is usable at now.
func (s *Session) Live(now time.Time) bool {
	return s != nil && s.Valid && now.Before(s.ExpiresAt)
}

// HashToken returns the lookup key stored for a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ClampClientMeta truncates client metadata to the stored column widths.
func ClampClientMeta(ip, userAgent string) (string, string) {
	return truncate(strings.TrimSpace(ip), MaxIPLength), truncate(userAgent, MaxUserAgentLength)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// UserStore persists users. Emails are stored lowercased by callers.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByOIDCSubject(ctx context.Context, subject string) (*User, error)
	// Create inserts u and assigns u.ID when empty.
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
}

// SessionStore persists sessions.
//
// Create is the only write on the login path. It must atomically evict the
// owner's oldest live sessions until fewer than maxLive remain and then insert
// sess, so concurrent logins for one user can never leave more than maxLive
// live rows. maxLive <= 0 disables the cap.
type SessionStore interface {
	Create(ctx context.Context, sess *Session, maxLive int) (evicted int, err error)
	// GetByTokenHash returns the row only when Valid is set.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	Invalidate(ctx context.Context, sessionID string) error
	Touch(ctx context.Context, sessionID string, at time.Time) error
	DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error)
	// DeleteByID removes sessionID only when it belongs to userID.
	DeleteByID(ctx context.Context, userID, sessionID string) (bool, error)
	// DeleteAllForUser removes every session of userID except exceptID.
	DeleteAllForUser(ctx context.Context, userID, exceptID string) (int, error)
	// ListForUser returns the live sessions of userID, newest first.
	ListForUser(ctx context.Context, userID string, now time.Time) ([]Session, error)
	// PurgeExpired deletes expired and invalidated rows.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
