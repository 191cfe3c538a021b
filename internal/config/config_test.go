package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "LOG_LEVEL", "SERVER_ADDR", "FRONTEND_URL", "DATABASE_URL", "REDIS_ADDR",
		"JWT_SECRET", "SECRET_RESET", "TOKEN_EXPIRY_MINUTES", "SINGLE_SESSION_MODE",
		"MAX_SESSIONS_PER_USER", "BRUTE_FORCE_MAX_ATTEMPTS", "BRUTE_FORCE_BLOCK_MINUTES",
		"SMTP_HOST", "SMTP_PORT", "SMTP_TLS", "TRUSTED_PROXIES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "dev", cfg.App.Env)
	require.NotNil(t, cfg.Sessions.Single)
	assert.True(t, *cfg.Sessions.Single)

	ec := cfg.EngineConfig()
	assert.True(t, ec.SessionPolicy.Single())
	assert.Equal(t, time.Hour, ec.JWT.AccessTTL)
	assert.Equal(t, 5, ec.BruteForce.MaxAttempts)
	assert.Equal(t, 15*time.Minute, ec.BruteForce.BlockDuration)

	_, ok := cfg.SMTPConfig()
	assert.False(t, ok)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "authctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
jwt:
  secret: from-file-secret-0123456789
  access_ttl: 30m
sessions:
  single: false
  max: 3
smtp:
  host: mail.example.com
`), 0o600))

	t.Setenv("JWT_SECRET", "from-env-secret-0123456789")
	t.Setenv("SECRET_RESET", "reset-env-secret-0123456789")
	t.Setenv("BRUTE_FORCE_BLOCK_MINUTES", "2")
	t.Setenv("FRONTEND_URL", "https://app.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)

	ec := cfg.EngineConfig()
	assert.Equal(t, []byte("from-env-secret-0123456789"), ec.JWT.AccessSecret)
	assert.Equal(t, []byte("reset-env-secret-0123456789"), ec.JWT.SpecialSecret)
	assert.Equal(t, 30*time.Minute, ec.JWT.AccessTTL)
	assert.Equal(t, 3, ec.SessionPolicy.Limit())
	assert.Equal(t, 2*time.Minute, ec.BruteForce.BlockDuration)
	require.NoError(t, ec.Validate())

	smtp, ok := cfg.SMTPConfig()
	require.True(t, ok)
	assert.Equal(t, "mail.example.com", smtp.Host)
	assert.Equal(t, 587, smtp.Port)
	assert.Equal(t, "https://app.example.com", smtp.FrontendURL)
}

func TestTokenExpiryMinutesAndSingleSessionEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOKEN_EXPIRY_MINUTES", "90")
	t.Setenv("SINGLE_SESSION_MODE", "false")
	t.Setenv("MAX_SESSIONS_PER_USER", "4")

	cfg, err := Load("")
	require.NoError(t, err)

	ec := cfg.EngineConfig()
	assert.Equal(t, 90*time.Minute, ec.JWT.AccessTTL)
	assert.False(t, ec.SessionPolicy.Single())
	assert.Equal(t, 4, ec.SessionPolicy.Limit())
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMTP_TLS", "starttls-maybe")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestTrustedProxiesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", " 192.0.2.1"}, cfg.Server.TrustedProxies)

	_, err = cfg.Proxies()
	require.NoError(t, err)

	t.Setenv("TRUSTED_PROXIES", "not-an-ip")
	_, err = Load("")
	require.ErrorContains(t, err, "server.trusted_proxies")
}
