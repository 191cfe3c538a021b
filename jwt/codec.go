package jwt

import (
	"bytes"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose restricts which operation a token may be redeemed for.
type Purpose string

const (
	PurposeAccess       Purpose = "access"
	PurposeVerification Purpose = "verification"
	PurposeReset        Purpose = "reset"
)

const minSecretBytes = 16

// ErrInvalidToken is returned for any signature, structure, expiry or
// purpose failure.
var ErrInvalidToken = errors.New("invalid token")

// Config holds signing secrets and per-purpose lifetimes.
type Config struct {
	AccessSecret    []byte
	SpecialSecret   []byte
	AccessTTL       time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	Issuer          string
	Now             func() time.Time
}

// AccessClaims is the payload of a session access token. The flags are a
// snapshot taken at mint time.
type AccessClaims struct {
	Purpose   Purpose `json:"type"`
	Email     string  `json:"email,omitempty"`
	Active    bool    `json:"is_active"`
	Verified  bool    `json:"is_verified"`
	Superuser bool    `json:"is_superuser"`
	jwt.RegisteredClaims
}

// SpecialClaims is the payload of verification and reset tokens.
type SpecialClaims struct {
	Purpose Purpose `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and parses tokens. It is safe for concurrent use.
type Codec struct {
	config Config
	parser *jwt.Parser
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) < minSecretBytes || len(cfg.SpecialSecret) < minSecretBytes {
		return nil, errors.New("jwt secrets must be at least 16 bytes")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.SpecialSecret) {
		return nil, errors.New("access and special secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.VerificationTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	return &Codec{config: cfg, parser: jwt.NewParser(options...)}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.config.AccessTTL
}

// EncodeAccess mints an access token for claims.Subject. Purpose, issue
// time, expiry, issuer and token id are filled in; the completed claims
// are returned alongside the token.
func (c *Codec) EncodeAccess(claims AccessClaims) (string, *AccessClaims, error) {
	if claims.Subject == "" {
		return "", nil, errors.New("access token requires subject")
	}

	now := c.config.Now()
	claims.Purpose = PurposeAccess
	claims.RegisteredClaims = c.registered(claims.Subject, now, c.config.AccessTTL)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.AccessSecret)
	if err != nil {
		return "", nil, err
	}
	return token, &claims, nil
}

// DecodeAccess verifies an access token.
func (c *Codec) DecodeAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenStr, claims, c.config.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// EncodeSpecial mints a verification or reset token for subject.
func (c *Codec) EncodeSpecial(subject string, purpose Purpose) (string, error) {
	ttl, ok := c.specialTTL(purpose)
	if !ok {
		return "", errors.New("unsupported special token purpose")
	}
	if subject == "" {
		return "", errors.New("special token requires subject")
	}

	claims := SpecialClaims{
		Purpose:          purpose,
		RegisteredClaims: c.registered(subject, c.config.Now(), ttl),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.SpecialSecret)
}

// DecodeSpecial verifies a verification or reset token and rejects it
// when its purpose differs from expected, even with a valid signature.
func (c *Codec) DecodeSpecial(tokenStr string, expected Purpose) (*SpecialClaims, error) {
	if _, ok := c.specialTTL(expected); !ok {
		return nil, ErrInvalidToken
	}

	claims := &SpecialClaims{}
	if err := c.parse(tokenStr, claims, c.config.SpecialSecret); err != nil {
		return nil, err
	}
	if claims.Purpose != expected || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	token, err := c.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (c *Codec) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.config.Issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) specialTTL(purpose Purpose) (time.Duration, bool) {
	switch purpose {
	case PurposeVerification:
		return c.config.VerificationTTL, true
	case PurposeReset:
		return c.config.ResetTTL, true
	default:
		return 0, false
	}
}
