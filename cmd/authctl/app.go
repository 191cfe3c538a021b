package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/store/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var errMissingDatabase = errors.New("DATABASE_URL is required")

// app owns every resource opened for one command.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *sql.DB
	rdb    redis.UniversalClient
	oauth  *oauth.Client
	engine *authcore.Engine
}

// openApp wires the engine on Postgres users. Sessions live in Redis when
// REDIS_ADDR is set and in Postgres otherwise.
func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, errMissingDatabase
	}

	a := &app{cfg: cfg, log: logging.New(cfg.LoggingConfig())}

	a.db, err = postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		a.Close()
		return nil, err
	}

	b := authcore.New().
		WithConfig(cfg.EngineConfig()).
		WithUserStore(postgres.NewUserStore(a.db)).
		WithLogger(a.log)

	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, err
		}
		b = b.WithRedis(a.rdb)
	} else {
		b = b.WithSessionStore(postgres.NewSessionStore(a.db))
	}

	if smtp, ok := cfg.SMTPConfig(); ok {
		b = b.WithMailer(notify.NewSMTPSender(smtp))
	}

	if cfg.OAuth.ClientID != "" {
		oc := oauth.GoogleConfig(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURL)
		if cfg.OAuth.AuthURL != "" {
			oc.AuthURL = cfg.OAuth.AuthURL
		}
		if cfg.OAuth.TokenURL != "" {
			oc.TokenURL = cfg.OAuth.TokenURL
		}
		if cfg.OAuth.UserInfoURL != "" {
			oc.UserInfoURL = cfg.OAuth.UserInfoURL
		}
		a.oauth, err = oauth.NewClient(oc)
		if err != nil {
			a.Close()
			return nil, err
		}
		b = b.WithOAuthClient(a.oauth)
	}

	a.engine, err = b.Build()
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// emailLimiter allows five email requests per IP every ten minutes.
func (a *app) emailLimiter() rate.Limiter {
	cfg := rate.Config{Limit: 5, Window: 10 * time.Minute}
	if a.rdb != nil {
		return rate.NewRedis(a.rdb, cfg)
	}
	return rate.NewLocal(cfg, nil)
}

func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.log.Sync()
}
