package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultRetention keeps expired rows around for this long before Redis
// drops them on its own.
const DefaultRetention = 24 * time.Hour

// KEYS[1] user zset, KEYS[2] new session hash, KEYS[3] token key, KEYS[4] expiry zset.
// ARGV: prefix, id, max_live, now_us, expire_at_ms, then hash field/value pairs.
const createSessionScript = `
local prefix = ARGV[1]
local id = ARGV[2]
local max_live = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local evicted = 0

if max_live > 0 then
  local live = {}
  local ids = redis.call("ZRANGE", KEYS[1], 0, -1)
  for _, sid in ipairs(ids) do
    local skey = prefix .. ":s:" .. sid
    local f = redis.call("HMGET", skey, "valid", "expires", "token_hash", "created", "seq")
    if not f[1] then
      redis.call("ZREM", KEYS[1], sid)
    elseif f[1] == "1" and tonumber(f[2]) > now then
      table.insert(live, {sid, skey, f[3], tonumber(f[4]) or 0, tonumber(f[5]) or 0})
    end
  end
  table.sort(live, function(a, b)
    if a[4] ~= b[4] then
      return a[4] < b[4]
    end
    return a[5] < b[5]
  end)

  local i = 1
  while (#live - evicted) >= max_live do
    local victim = live[i]
    redis.call("DEL", victim[2], prefix .. ":t:" .. victim[3])
    redis.call("ZREM", KEYS[1], victim[1])
    redis.call("ZREM", KEYS[4], victim[1])
    redis.call("SREM", prefix .. ":inv", victim[1])
    evicted = evicted + 1
    i = i + 1
  end
end

local fields = {}
for j = 6, #ARGV do
  table.insert(fields, ARGV[j])
end
redis.call("HSET", KEYS[2], unpack(fields))
redis.call("HSET", KEYS[2], "seq", redis.call("INCR", prefix .. ":seq"))
redis.call("PEXPIREAT", KEYS[2], ARGV[5])
redis.call("SET", KEYS[3], id)
redis.call("PEXPIREAT", KEYS[3], ARGV[5])

local created = redis.call("HGET", KEYS[2], "created")
local expires = redis.call("HGET", KEYS[2], "expires")
redis.call("ZADD", KEYS[1], created, id)
redis.call("ZADD", KEYS[4], expires, id)
return evicted
`

var createSessionLua = redis.NewScript(createSessionScript)

// KEYS[1] session hash. ARGV: prefix, id, expected user id ("" for any).
const deleteSessionScript = `
local prefix = ARGV[1]
local f = redis.call("HMGET", KEYS[1], "user_id", "token_hash")
if not f[1] then
  redis.call("ZREM", prefix .. ":exp", ARGV[2])
  redis.call("SREM", prefix .. ":inv", ARGV[2])
  return 0
end
if ARGV[3] ~= "" and f[1] ~= ARGV[3] then
  return 0
end
redis.call("DEL", KEYS[1], prefix .. ":t:" .. f[2])
redis.call("ZREM", prefix .. ":u:" .. f[1], ARGV[2])
redis.call("ZREM", prefix .. ":exp", ARGV[2])
redis.call("SREM", prefix .. ":inv", ARGV[2])
return 1
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// KEYS[1] session hash. ARGV: field, value. Returns 0 when the hash is gone.
const setFieldScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`

var setFieldLua = redis.NewScript(setFieldScript)

// Store is a Redis-backed store.SessionStore.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ store.SessionStore = (*Store)(nil)

// NewStore creates a session Store under the given key prefix. retention
// defaults to DefaultRetention when zero.
func NewStore(client redis.UniversalClient, prefix string, retention time.Duration) *Store {
	if prefix == "" {
		prefix = "as"
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{redis: client, prefix: prefix, retention: retention}
}

func (s *Store) sessionKey(id string) string { return s.prefix + ":s:" + id }

func (s *Store) tokenKey(tokenHash string) string { return s.prefix + ":t:" + tokenHash }

func (s *Store) userKey(userID string) string { return s.prefix + ":u:" + userID }

func (s *Store) expiryKey() string { return s.prefix + ":exp" }

func (s *Store) invalidKey() string { return s.prefix + ":inv" }

// Create evicts the owner's oldest live sessions down to maxLive-1 and
// stores sess in one script execution.
func (s *Store) Create(ctx context.Context, sess *store.Session, maxLive int) (int, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	args := []interface{}{
		s.prefix,
		sess.ID,
		maxLive,
		sess.CreatedAt.UnixMicro(),
		sess.ExpiresAt.Add(s.retention).UnixMilli(),
	}
	args = append(args, encode(sess)...)

	evicted, err := createSessionLua.Run(ctx, s.redis,
		[]string{s.userKey(sess.UserID), s.sessionKey(sess.ID), s.tokenKey(sess.TokenHash), s.expiryKey()},
		args...,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return evicted, nil
}

// GetByTokenHash returns the valid session stored for tokenHash.
func (s *Store) GetByTokenHash(ctx context.Context, tokenHash string) (*store.Session, error) {
	id, err := s.redis.Get(ctx, s.tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Valid {
		return nil, store.ErrNotFound
	}
	return sess, nil
}

func (s *Store) get(ctx context.Context, id string) (*store.Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decode(id, fields)
}

// Invalidate clears the validity flag of a session.
func (s *Store) Invalidate(ctx context.Context, sessionID string) error {
	if err := s.setField(ctx, sessionID, fieldValid, "0"); err != nil {
		return err
	}
	if err := s.redis.SAdd(ctx, s.invalidKey(), sessionID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Touch records the last use of a session.
func (s *Store) Touch(ctx context.Context, sessionID string, at time.Time) error {
	return s.setField(ctx, sessionID, fieldUpdated, strconv.FormatInt(at.UnixMicro(), 10))
}

func (s *Store) setField(ctx context.Context, sessionID, field, value string) error {
	found, err := setFieldLua.Run(ctx, s.redis, []string{s.sessionKey(sessionID)}, field, value).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if found == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteByTokenHash removes the session stored for tokenHash. Deleting a
// missing session is a no-op.
func (s *Store) DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error) {
	id, err := s.redis.Get(ctx, s.tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.delete(ctx, id, "")
}

// DeleteByID removes sessionID when it belongs to userID.
func (s *Store) DeleteByID(ctx context.Context, userID, sessionID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return s.delete(ctx, sessionID, userID)
}

func (s *Store) delete(ctx context.Context, id, owner string) (bool, error) {
	n, err := deleteSessionLua.Run(ctx, s.redis, []string{s.sessionKey(id)}, s.prefix, id, owner).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// DeleteAllForUser removes every session of userID except exceptID.
//
// Sessions are read from the user index and deleted one script call at a
// time. A session created concurrently with this call may survive it.
func (s *Store) DeleteAllForUser(ctx context.Context, userID, exceptID string) (int, error) {
	ids, err := s.redis.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	removed := 0
	for _, id := range ids {
		if id == exceptID {
			continue
		}
		ok, err := s.delete(ctx, id, userID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		} else {
			// dangling index entry
			s.redis.ZRem(ctx, s.userKey(userID), id)
		}
	}
	return removed, nil
}

// ListForUser returns the live sessions of userID, newest first.
func (s *Store) ListForUser(ctx context.Context, userID string, now time.Time) ([]store.Session, error) {
	ids, err := s.redis.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]store.Session, 0, len(ids))
	for i, cmd := range cmds {
		sess, err := decode(ids[i], cmd.Val())
		if err != nil {
			continue
		}
		if sess.Live(now) {
			live = append(live, *sess)
		}
	}
	return live, nil
}

// PurgeExpired deletes sessions that expired at or before now and every
// invalidated session.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.redis.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	invalid, err := s.redis.SMembers(ctx, s.invalidKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	seen := make(map[string]struct{}, len(expired)+len(invalid))
	purged := 0
	for _, id := range append(expired, invalid...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		ok, err := s.delete(ctx, id, "")
		if err != nil {
			return purged, err
		}
		if ok {
			purged++
		}
	}
	return purged, nil
}
