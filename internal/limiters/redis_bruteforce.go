package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTrackerUnavailable indicates the Redis backend could not be reached.
var ErrTrackerUnavailable = errors.New("attempt tracker backend unavailable")

// KEYS[1] attempt zset, KEYS[2] block deadline.
// ARGV: now_ms, window_ms, max_attempts, member, deadline_ms.
const recordFailureScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)

local until_ms = tonumber(redis.call("GET", KEYS[2]) or "0")
if until_ms > now then
  return 1
end

if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
  redis.call("SET", KEYS[2], ARGV[5], "PX", window)
  return 1
end
return 0
`

var recordFailureLua = redis.NewScript(recordFailureScript)

// Same keys and ARGV as recordFailureScript. Returns 1 without recording
// when the key is already blocked.
const reserveScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local until_ms = tonumber(redis.call("GET", KEYS[2]) or "0")
if until_ms > now then
  return 1
end

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
  redis.call("SET", KEYS[2], ARGV[5], "PX", window)
end
return 0
`

var reserveLua = redis.NewScript(reserveScript)

// RedisBruteForceTracker shares attempt windows between processes through
// Redis. Semantics match BruteForceTracker.
type RedisBruteForceTracker struct {
	redis  redis.UniversalClient
	prefix string
	cfg    BruteForceConfig
}

// NewRedisBruteForceTracker returns a tracker storing keys under prefix.
func NewRedisBruteForceTracker(client redis.UniversalClient, prefix string, cfg BruteForceConfig) *RedisBruteForceTracker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if prefix == "" {
		prefix = "abf"
	}
	return &RedisBruteForceTracker{redis: client, prefix: prefix, cfg: cfg}
}

func (t *RedisBruteForceTracker) attemptsKey(key string) string {
	return t.prefix + ":a:" + key
}

func (t *RedisBruteForceTracker) blockKey(key string) string {
	return t.prefix + ":b:" + key
}

// IsBlocked reports whether either key holds a block deadline after now.
func (t *RedisBruteForceTracker) IsBlocked(ctx context.Context, ip, identifier string) (bool, error) {
	now := t.cfg.Now().UnixMilli()
	for _, key := range keysFor(ip, identifier) {
		raw, err := t.redis.Get(ctx, t.blockKey(key)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
		}
		until, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && until > now {
			return true, nil
		}
	}
	return false, nil
}

// RecordAttempt mirrors BruteForceTracker.RecordAttempt.
func (t *RedisBruteForceTracker) RecordAttempt(ctx context.Context, ip, identifier string, success bool) (bool, error) {
	if success {
		return false, t.ResetAttempts(ctx, ip, identifier)
	}

	now := t.cfg.Now()
	window := t.cfg.BlockDuration.Milliseconds()
	deadline := now.Add(t.cfg.BlockDuration).UnixMilli()

	blocked := false
	for _, key := range keysFor(ip, identifier) {
		res, err := recordFailureLua.Run(ctx, t.redis,
			[]string{t.attemptsKey(key), t.blockKey(key)},
			now.UnixMilli(), window, t.cfg.MaxAttempts, uuid.NewString(), deadline,
		).Int64()
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
		}
		if res == 1 {
			blocked = true
		}
	}
	return blocked, nil
}

// Reserve mirrors BruteForceTracker.Reserve. Each key is checked and
// charged by one script call.
func (t *RedisBruteForceTracker) Reserve(ctx context.Context, ip, identifier string) (bool, error) {
	now := t.cfg.Now()
	window := t.cfg.BlockDuration.Milliseconds()
	deadline := now.Add(t.cfg.BlockDuration).UnixMilli()

	for _, key := range keysFor(ip, identifier) {
		res, err := reserveLua.Run(ctx, t.redis,
			[]string{t.attemptsKey(key), t.blockKey(key)},
			now.UnixMilli(), window, t.cfg.MaxAttempts, uuid.NewString(), deadline,
		).Int64()
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
		}
		if res == 1 {
			return true, nil
		}
	}
	return false, nil
}

// ResetAttempts deletes history and blocks for the given keys.
func (t *RedisBruteForceTracker) ResetAttempts(ctx context.Context, ip, identifier string) error {
	keys := keysFor(ip, identifier)
	if len(keys) == 0 {
		return nil
	}
	del := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		del = append(del, t.attemptsKey(key), t.blockKey(key))
	}
	if err := t.redis.Del(ctx, del...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}
	return nil
}

func keysFor(ip, identifier string) []string {
	keys := make([]string, 0, 2)
	if ip != "" {
		keys = append(keys, ipKey(ip))
	}
	if identifier != "" {
		keys = append(keys, identifierKey(identifier))
	}
	return keys
}
