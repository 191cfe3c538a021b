package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/google/uuid"
)

const sessionColumns = `id, user_id, token_hash, created_at, updated_at, expires_at, is_valid, ip_address, user_agent`

// SessionStore is a store.SessionStore backed by the sessions table.
//
// Create needs a *sql.DB because eviction and insert share a transaction
// that holds the owner's users row lock.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore returns a SessionStore over db.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (r *SessionStore) Create(ctx context.Context, sess *store.Session, maxLive int) (int, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	evicted := 0

	err := WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, sess.UserID).Scan(&owner)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
				return store.ErrNotFound
			}
			return dbError(err)
		}

		if maxLive > 0 {
			ids, err := liveSessionIDs(ctx, tx, sess.UserID, sess.CreatedAt)
			if err != nil {
				return err
			}
			for len(ids)-evicted >= maxLive {
				if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, ids[evicted]); err != nil {
					return dbError(err)
				}
				evicted++
			}
		}

		query :=
			`INSERT INTO sessions (` + sessionColumns + `)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err = tx.ExecContext(ctx, query,
			sess.ID, sess.UserID, sess.TokenHash, sess.CreatedAt, sess.UpdatedAt, sess.ExpiresAt,
			sess.Valid, sess.IP, sess.UserAgent)
		if err != nil {
			return dbError(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return evicted, nil
}

// liveSessionIDs returns live session ids of userID, oldest first. seq
// orders sessions inserted with the same created_at.
func liveSessionIDs(ctx context.Context, tx DBTX, userID string, now time.Time) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM sessions
		 WHERE user_id = $1 AND is_valid AND expires_at > $2
		 ORDER BY created_at ASC, seq ASC`, userID, now)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return ids, nil
}

func (r *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*store.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1 AND is_valid`, tokenHash)

	var s store.Session
	if err := scanSession(row, &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, dbError(err)
	}
	return &s, nil
}

func (r *SessionStore) Invalidate(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET is_valid = FALSE WHERE id = $1`, sessionID)
	if err != nil {
		return dbError(err)
	}
	return nil
}

func (r *SessionStore) Touch(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET updated_at = $2 WHERE id = $1`, sessionID, at)
	if err != nil {
		return dbError(err)
	}
	return nil
}

func (r *SessionStore) DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error) {
	return r.deleteWhere(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
}

func (r *SessionStore) DeleteByID(ctx context.Context, userID, sessionID string) (bool, error) {
	return r.deleteWhere(ctx, `DELETE FROM sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
}

func (r *SessionStore) DeleteAllForUser(ctx context.Context, userID, exceptID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1 AND id::text <> $2`, userID, exceptID)
	if err != nil {
		return 0, dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbError(err)
	}
	return int(n), nil
}

func (r *SessionStore) ListForUser(ctx context.Context, userID string, now time.Time) ([]store.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND is_valid AND expires_at > $2
		 ORDER BY created_at DESC, seq DESC`, userID, now)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var out []store.Session
	for rows.Next() {
		var s store.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, dbError(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return out, nil
}

func (r *SessionStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1 OR NOT is_valid`, now)
	if err != nil {
		return 0, dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbError(err)
	}
	return int(n), nil
}

func (r *SessionStore) deleteWhere(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isInvalidID(err) {
			return false, nil
		}
		return false, dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbError(err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner, s *store.Session) error {
	return row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt,
		&s.Valid, &s.IP, &s.UserAgent)
}
