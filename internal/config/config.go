// Package config loads the authctl service configuration from an optional
// YAML file plus environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/middleware"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr        string `yaml:"addr"`
		FrontendURL string `yaml:"frontend_url"`
		// CIDRs or addresses whose X-Forwarded-For is believed
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	JWT struct {
		Secret          string `yaml:"secret"`
		ResetSecret     string `yaml:"reset_secret"`
		Issuer          string `yaml:"issuer"`
		AccessTTL       string `yaml:"access_ttl"`
		VerificationTTL string `yaml:"verification_ttl"`
		ResetTTL        string `yaml:"reset_ttl"`
	} `yaml:"jwt"`

	Sessions struct {
		// Single defaults to true; false applies Max.
		Single *bool `yaml:"single"`
		Max    int   `yaml:"max"`
	} `yaml:"sessions"`

	BruteForce struct {
		MaxAttempts  int `yaml:"max_attempts"`
		BlockMinutes int `yaml:"block_minutes"`
	} `yaml:"brute_force"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		TLS      string `yaml:"tls"`
	} `yaml:"smtp"`

	OAuth struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		AuthURL      string `yaml:"auth_url"`
		TokenURL     string `yaml:"token_url"`
		UserInfoURL  string `yaml:"userinfo_url"`
		RedirectURL  string `yaml:"redirect_url"`
	} `yaml:"oauth"`
}

// Load reads path when it is non-empty, applies defaults and then
// environment overrides.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()
	return &c, c.Validate()
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.FrontendURL == "" {
		c.Server.FrontendURL = "http://localhost:3000"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "60m"
	}
	if c.JWT.VerificationTTL == "" {
		c.JWT.VerificationTTL = "24h"
	}
	if c.JWT.ResetTTL == "" {
		c.JWT.ResetTTL = "24h"
	}
	if c.Sessions.Single == nil {
		single := true
		c.Sessions.Single = &single
	}
	if c.Sessions.Max == 0 {
		c.Sessions.Max = 5
	}
	if c.BruteForce.MaxAttempts == 0 {
		c.BruteForce.MaxAttempts = 5
	}
	if c.BruteForce.BlockMinutes == 0 {
		c.BruteForce.BlockMinutes = 15
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("FRONTEND_URL"); ok {
		c.Server.FrontendURL = v
	}
	if v, ok := getEnvStr("TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = strings.Split(v, ",")
	}

	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Database.URL = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}

	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("SECRET_RESET"); ok {
		c.JWT.ResetSecret = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvInt("TOKEN_EXPIRY_MINUTES"); ok {
		c.JWT.AccessTTL = strconv.Itoa(v) + "m"
	}

	if v, ok := getEnvBool("SINGLE_SESSION_MODE"); ok {
		c.Sessions.Single = &v
	}
	if v, ok := getEnvInt("MAX_SESSIONS_PER_USER"); ok {
		c.Sessions.Max = v
	}
	if v, ok := getEnvInt("BRUTE_FORCE_MAX_ATTEMPTS"); ok {
		c.BruteForce.MaxAttempts = v
	}
	if v, ok := getEnvInt("BRUTE_FORCE_BLOCK_MINUTES"); ok {
		c.BruteForce.BlockMinutes = v
	}

	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USER"); ok {
		c.SMTP.User = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v)
	}

	if v, ok := getEnvStr("OAUTH_CLIENT_ID"); ok {
		c.OAuth.ClientID = v
	}
	if v, ok := getEnvStr("OAUTH_CLIENT_SECRET"); ok {
		c.OAuth.ClientSecret = v
	}
	if v, ok := getEnvStr("OAUTH_AUTH_URL"); ok {
		c.OAuth.AuthURL = v
	}
	if v, ok := getEnvStr("OAUTH_TOKEN_URL"); ok {
		c.OAuth.TokenURL = v
	}
	if v, ok := getEnvStr("OAUTH_USERINFO_URL"); ok {
		c.OAuth.UserInfoURL = v
	}
	if v, ok := getEnvStr("OAUTH_REDIRECT_URL"); ok {
		c.OAuth.RedirectURL = v
	}
}

// Validate checks the fields that do not depend on the engine.
func (c *Config) Validate() error {
	if c.Sessions.Max < 1 {
		return errors.New("sessions.max must be >= 1")
	}
	if c.BruteForce.MaxAttempts < 1 || c.BruteForce.BlockMinutes < 1 {
		return errors.New("brute_force limits must be >= 1")
	}
	for name, v := range map[string]string{
		"jwt.access_ttl":       c.JWT.AccessTTL,
		"jwt.verification_ttl": c.JWT.VerificationTTL,
		"jwt.reset_ttl":        c.JWT.ResetTTL,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	switch c.SMTP.TLS {
	case "auto", "ssl", "none":
	default:
		return fmt.Errorf("smtp.tls: unknown mode %q", c.SMTP.TLS)
	}
	if _, err := c.Proxies(); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	return nil
}

// Proxies parses Server.TrustedProxies.
func (c *Config) Proxies() (middleware.TrustedProxies, error) {
	return middleware.ParseTrustedProxies(c.Server.TrustedProxies)
}

// EngineConfig maps c onto the engine configuration. Secrets are checked by
// authcore.Config.Validate when the engine is built.
func (c *Config) EngineConfig() authcore.Config {
	out := authcore.DefaultConfig()
	out.JWT.AccessSecret = []byte(c.JWT.Secret)
	out.JWT.SpecialSecret = []byte(c.JWT.ResetSecret)
	out.JWT.Issuer = c.JWT.Issuer
	out.JWT.AccessTTL, _ = time.ParseDuration(c.JWT.AccessTTL)
	out.JWT.VerificationTTL, _ = time.ParseDuration(c.JWT.VerificationTTL)
	out.JWT.ResetTTL, _ = time.ParseDuration(c.JWT.ResetTTL)

	if c.Sessions.Single == nil || *c.Sessions.Single {
		out.SessionPolicy = authcore.SingleSession()
	} else {
		out.SessionPolicy = authcore.MaxSessions(c.Sessions.Max)
	}

	out.BruteForce.MaxAttempts = c.BruteForce.MaxAttempts
	out.BruteForce.BlockDuration = time.Duration(c.BruteForce.BlockMinutes) * time.Minute
	return out
}

// SMTPConfig returns the mail settings, or false when SMTP_HOST is unset.
func (c *Config) SMTPConfig() (notify.SMTPConfig, bool) {
	if c.SMTP.Host == "" {
		return notify.SMTPConfig{}, false
	}
	return notify.SMTPConfig{
		Host:        c.SMTP.Host,
		Port:        c.SMTP.Port,
		From:        c.SMTP.From,
		Username:    c.SMTP.User,
		Password:    c.SMTP.Password,
		TLSMode:     c.SMTP.TLS,
		FrontendURL: c.Server.FrontendURL,
	}, true
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Env: c.App.Env, Level: c.App.LogLevel, ServiceName: "authctl"}
}
