package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config

	users    store.UserStore
	sessions store.SessionStore
	redis    redis.UniversalClient

	oauthClient *oauth.Client
	mailer      Mailer
	logger      *zap.Logger
	now         func() time.Time

	built bool
}

// New returns a Builder holding the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the user repository. Required.
func (b *Builder) WithUserStore(users store.UserStore) *Builder {
	b.users = users
	return b
}

// WithSessionStore sets the session repository. When unset, a Redis client
// must be provided and sessions live in Redis.
func (b *Builder) WithSessionStore(sessions store.SessionStore) *Builder {
	b.sessions = sessions
	return b
}

// WithRedis shares brute-force state between processes through client, and
// stores sessions there unless WithSessionStore is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithOAuthClient enables authorization-code exchange for ProviderOAuth.
func (b *Builder) WithOAuthClient(c *oauth.Client) *Builder {
	b.oauthClient = c
	return b
}

// WithMailer sets the transport for verification and reset emails. Without
// one, messages are only logged.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces time.Now for tokens, sessions and attempt windows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.sessions == nil && b.redis == nil {
		return nil, errors.New("session store or redis client required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("authcore")

	sessions := b.sessions
	if sessions == nil {
		sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.Retention)
	}

	// -------- ATTEMPT TRACKER --------
	trackerCfg := limiters.BruteForceConfig{
		MaxAttempts:   cfg.BruteForce.MaxAttempts,
		BlockDuration: cfg.BruteForce.BlockDuration,
		Now:           now,
		Logger:        log,
	}
	var tracker attemptTracker
	if b.redis != nil {
		tracker = limiters.NewRedisBruteForceTracker(b.redis, cfg.BruteForce.RedisPrefix, trackerCfg)
	} else {
		tracker = localTracker{limiters.NewBruteForceTracker(trackerCfg)}
	}

	// -------- TOKENS AND HASHING --------
	codec, err := jwt.NewCodec(jwt.Config{
		AccessSecret:    cloneBytes(cfg.JWT.AccessSecret),
		SpecialSecret:   cloneBytes(cfg.JWT.SpecialSecret),
		AccessTTL:       cfg.JWT.AccessTTL,
		VerificationTTL: cfg.JWT.VerificationTTL,
		ResetTTL:        cfg.JWT.ResetTTL,
		Issuer:          cfg.JWT.Issuer,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	var sender notify.Sender
	if b.mailer != nil {
		sender = mailerSender(b.mailer)
	}

	engine := &Engine{
		config:      cfg,
		users:       b.users,
		sessions:    sessions,
		tracker:     tracker,
		codec:       codec,
		hasher:      ph,
		oauthClient: b.oauthClient,
		metrics:     NewMetrics(cfg.Metrics),
		log:         log,
		now:         now,
	}
	engine.notifier = notify.NewDispatcher(notify.Config{
		BufferSize:  cfg.Notify.BufferSize,
		DropIfFull:  cfg.Notify.DropIfFull,
		SendTimeout: cfg.Notify.SendTimeout,
	}, sender, log)
	engine.providers = map[ProviderKind]Provider{
		ProviderPassword: passwordProvider{engine: engine},
		ProviderOAuth:    oauthProvider{engine: engine},
	}

	b.built = true

	return engine, nil
}
