package session

import (
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/store"
)

// ErrCorruptSession is returned when a stored hash is missing required fields.
var ErrCorruptSession = errors.New("session record corrupt")

const (
	fieldUserID    = "user_id"
	fieldTokenHash = "token_hash"
	fieldCreated   = "created"
	fieldUpdated   = "updated"
	fieldExpires   = "expires"
	fieldValid     = "valid"
	fieldIP        = "ip"
	fieldUserAgent = "ua"
)

func encode(sess *store.Session) []interface{} {
	valid := "0"
	if sess.Valid {
		valid = "1"
	}
	return []interface{}{
		fieldUserID, sess.UserID,
		fieldTokenHash, sess.TokenHash,
		fieldCreated, sess.CreatedAt.UnixMicro(),
		fieldUpdated, sess.UpdatedAt.UnixMicro(),
		fieldExpires, sess.ExpiresAt.UnixMicro(),
		fieldValid, valid,
		fieldIP, sess.IP,
		fieldUserAgent, sess.UserAgent,
	}
}

func decode(id string, fields map[string]string) (*store.Session, error) {
	if len(fields) == 0 {
		return nil, store.ErrNotFound
	}
	if fields[fieldUserID] == "" || fields[fieldTokenHash] == "" {
		return nil, ErrCorruptSession
	}

	created, err := micros(fields[fieldCreated])
	if err != nil {
		return nil, err
	}
	updated, err := micros(fields[fieldUpdated])
	if err != nil {
		return nil, err
	}
	expires, err := micros(fields[fieldExpires])
	if err != nil {
		return nil, err
	}

	return &store.Session{
		ID:        id,
		UserID:    fields[fieldUserID],
		TokenHash: fields[fieldTokenHash],
		CreatedAt: created,
		UpdatedAt: updated,
		ExpiresAt: expires,
		Valid:     fields[fieldValid] == "1",
		IP:        fields[fieldIP],
		UserAgent: fields[fieldUserAgent],
	}, nil
}

func micros(raw string) (time.Time, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, ErrCorruptSession
	}
	return time.UnixMicro(v).UTC(), nil
}
