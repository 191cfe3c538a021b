package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Limiter admits at most Limit requests per key in each Window.
type Limiter interface {
	// Allow counts one request. When the window is exhausted it returns
	// false and the time until the window resets.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Config sizes a window.
type Config struct {
	Limit  int
	Window time.Duration
	// Prefix namespaces Redis keys.
	Prefix string
}

func (c Config) normalized() Config {
	if c.Limit <= 0 {
		c.Limit = 5
	}
	if c.Window <= 0 {
		c.Window = 10 * time.Minute
	}
	if c.Prefix == "" {
		c.Prefix = "arl"
	}
	return c
}

// RedisLimiter shares windows across processes.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedis creates a [RedisLimiter].
func NewRedis(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{redis: client, config: cfg.normalized()}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.config.Prefix + ":" + key
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set by the first hit only.
	if count == 1 {
		if err := l.redis.PExpire(ctx, k, l.config.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count <= int64(l.config.Limit) {
		return true, 0, nil
	}

	ttl, err := l.redis.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		ttl = l.config.Window
	}
	return false, ttl, nil
}

type window struct {
	count int
	reset time.Time
}

// LocalLimiter keeps windows in process memory.
type LocalLimiter struct {
	mu      sync.Mutex
	config  Config
	windows *cache.Cache
	now     func() time.Time
}

// NewLocal creates a [LocalLimiter]. A nil now uses time.Now.
func NewLocal(cfg Config, now func() time.Time) *LocalLimiter {
	cfg = cfg.normalized()
	if now == nil {
		now = time.Now
	}
	return &LocalLimiter{
		config:  cfg,
		windows: cache.New(cfg.Window, 2*cfg.Window),
		now:     now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(key)
	current, _ := w.(*window)
	if !ok || current == nil || !now.Before(current.reset) {
		current = &window{reset: now.Add(l.config.Window)}
		l.windows.Set(key, current, l.config.Window)
	}

	current.count++
	if current.count <= l.config.Limit {
		return true, 0, nil
	}
	return false, current.reset.Sub(now), nil
}
