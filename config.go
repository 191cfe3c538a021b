package authcore

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// Config is the engine configuration. Start from DefaultConfig and set the
// two signing secrets.
type Config struct {
	JWT           JWTConfig
	SessionPolicy SessionPolicy
	BruteForce    BruteForceConfig
	Password      PasswordConfig
	OAuth         OAuthConfig
	Notify        NotifyConfig
	Session       SessionConfig
	Metrics       MetricsConfig
}

// JWTConfig holds signing secrets and token lifetimes. AccessSecret signs
// access tokens; SpecialSecret signs verification and reset tokens.
type JWTConfig struct {
	AccessSecret    []byte
	SpecialSecret   []byte
	AccessTTL       time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	Issuer          string
}

// SessionPolicy bounds the number of live sessions per user.
type SessionPolicy struct {
	max int
}

// SingleSession keeps at most one live session per user. A new login
// revokes the previous one.
func SingleSession() SessionPolicy {
	return SessionPolicy{max: 1}
}

// MaxSessions keeps at most n live sessions per user, evicting the oldest.
func MaxSessions(n int) SessionPolicy {
	return SessionPolicy{max: n}
}

// Limit returns the maximum number of live sessions.
func (p SessionPolicy) Limit() int {
	return p.max
}

// Single reports whether the policy is single-session.
func (p SessionPolicy) Single() bool {
	return p.max == 1
}

func (p SessionPolicy) String() string {
	if p.Single() {
		return "single-session"
	}
	return fmt.Sprintf("max-sessions(%d)", p.max)
}

// BruteForceConfig configures attempt tracking for login and reset flows.
type BruteForceConfig struct {
	MaxAttempts   int
	BlockDuration time.Duration
	// RedisPrefix namespaces tracker keys when a shared Redis tracker is used.
	RedisPrefix string
}

// PasswordConfig holds Argon2id cost parameters.
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	// UpgradeOnLogin re-hashes stale hashes after a successful login.
	UpgradeOnLogin bool
}

// OAuthConfig bounds calls to the identity provider.
type OAuthConfig struct {
	ExchangeTimeout time.Duration
}

// NotifyConfig controls the email queue.
type NotifyConfig struct {
	BufferSize  int
	DropIfFull  bool
	SendTimeout time.Duration
}

// SessionConfig applies to the Redis session store.
type SessionConfig struct {
	RedisPrefix string
	// Retention keeps invalidated rows for inspection before Redis drops them.
	Retention time.Duration
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:       time.Hour,
			VerificationTTL: 24 * time.Hour,
			ResetTTL:        24 * time.Hour,
		},
		SessionPolicy: SingleSession(),
		BruteForce: BruteForceConfig{
			MaxAttempts:   5,
			BlockDuration: 15 * time.Minute,
			RedisPrefix:   "abf",
		},
		Password: PasswordConfig{
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			UpgradeOnLogin:   true,
		},
		OAuth: OAuthConfig{
			ExchangeTimeout: 30 * time.Second,
		},
		Notify: NotifyConfig{
			BufferSize:  256,
			DropIfFull:  true,
			SendTimeout: 30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "as",
			Retention:   24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the defaults without secrets.
func DefaultConfig() Config {
	return defaultConfig()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if len(c.JWT.AccessSecret) < 16 {
		return errors.New("JWT AccessSecret must be at least 16 bytes")
	}
	if len(c.JWT.SpecialSecret) < 16 {
		return errors.New("JWT SpecialSecret must be at least 16 bytes")
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.SpecialSecret) {
		return errors.New("JWT AccessSecret and SpecialSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.VerificationTTL <= 0 || c.JWT.ResetTTL <= 0 {
		return errors.New("JWT lifetimes must be > 0")
	}

	if c.SessionPolicy.Limit() < 1 {
		return errors.New("SessionPolicy must allow at least one session")
	}

	if c.BruteForce.MaxAttempts <= 0 {
		return errors.New("BruteForce MaxAttempts must be > 0")
	}
	if c.BruteForce.BlockDuration <= 0 {
		return errors.New("BruteForce BlockDuration must be > 0")
	}

	if c.OAuth.ExchangeTimeout <= 0 {
		return errors.New("OAuth ExchangeTimeout must be > 0")
	}
	if c.Notify.BufferSize < 0 {
		return errors.New("Notify BufferSize must be >= 0")
	}
	if c.Session.Retention < 0 {
		return errors.New("Session Retention must be >= 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}

func cloneConfig(c Config) Config {
	c.JWT.AccessSecret = cloneBytes(c.JWT.AccessSecret)
	c.JWT.SpecialSecret = cloneBytes(c.JWT.SpecialSecret)
	return c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
