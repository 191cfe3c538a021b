package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, is_active, is_verified, is_superuser,
	oidc_subject, full_name, profile_picture, created_at, last_login`

// UserStore is a store.UserStore backed by the users table.
type UserStore struct {
	db DBTX
}

// NewUserStore returns a UserStore over db.
func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func (r *UserStore) GetByID(ctx context.Context, id string) (*store.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, strings.ToLower(email))
}

func (r *UserStore) GetByOIDCSubject(ctx context.Context, subject string) (*store.User, error) {
	if subject == "" {
		return nil, store.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE oidc_subject = $1`, subject)
}

func (r *UserStore) Create(ctx context.Context, u *store.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	query :=
		`INSERT INTO users (id, email, password_hash, is_active, is_verified, is_superuser,
			oidc_subject, full_name, profile_picture, created_at, last_login)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.Active, u.Verified, u.Superuser,
		nullString(u.OIDCSubject), u.FullName, u.ProfilePicture, u.CreatedAt, nullTime(u.LastLogin))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEmail
		}
		return dbError(err)
	}
	return nil
}

func (r *UserStore) Update(ctx context.Context, u *store.User) error {
	query :=
		`UPDATE users SET email = $2, password_hash = $3, is_active = $4, is_verified = $5,
			is_superuser = $6, oidc_subject = $7, full_name = $8, profile_picture = $9, last_login = $10
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.Active, u.Verified,
		u.Superuser, nullString(u.OIDCSubject), u.FullName, u.ProfilePicture, nullTime(u.LastLogin))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEmail
		}
		if isInvalidID(err) {
			return store.ErrNotFound
		}
		return dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *UserStore) getOne(ctx context.Context, query string, arg any) (*store.User, error) {
	var (
		u         store.User
		subject   sql.NullString
		lastLogin sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Active, &u.Verified, &u.Superuser,
		&subject, &u.FullName, &u.ProfilePicture, &u.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, store.ErrNotFound
		}
		return nil, dbError(err)
	}
	u.OIDCSubject = subject.String
	u.LastLogin = lastLogin.Time
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
