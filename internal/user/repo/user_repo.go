package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user/entity"
)

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  is_active BOOLEAN NOT NULL DEFAULT true,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const userColumns = `id, email, password_hash, name, is_active, created_at, updated_at`

// Create inserts a new user row. A unique violation on email maps to
// user.ErrDuplicateEmail so concurrent registrations cannot both win.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	const q = `INSERT INTO users (email, password_hash, name, is_active)
		VALUES (:email, :password_hash, :name, :is_active) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		return 0, mapErr(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, mapErr(err)
		}
		return 0, errors.New("no id returned")
	}
	if err := rows.Scan(&u.ID); err != nil {
		return 0, err
	}
	return u.ID, nil
}

// GetByEmail matches the stored (normalized) email exactly.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	var row entity.User
	if err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email=$1`, email); err != nil {
		return nil, mapErr(err)
	}
	return &row, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var row entity.User
	if err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id=$1`, id); err != nil {
		return nil, mapErr(err)
	}
	return &row, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	const q = `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`
	return r.execOne(ctx, q, id, hash)
}

func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	const q = `UPDATE users SET is_active=$2, updated_at=NOW() WHERE id=$1`
	return r.execOne(ctx, q, id, active)
}

func (r *UserRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrUserNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return user.ErrDuplicateEmail
	}
	return err
}
