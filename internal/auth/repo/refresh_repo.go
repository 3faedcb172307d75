package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/auth"
)

type RefreshRepo struct {
	db *sqlx.DB
}

func NewRefreshRepo(db *sqlx.DB) *RefreshRepo {
	return &RefreshRepo{db: db}
}

func (r *RefreshRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS auth_refresh_sessions (
  jti TEXT PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_auth_refresh_sessions_user ON auth_refresh_sessions(user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *RefreshRepo) Save(ctx context.Context, s auth.RefreshSession) error {
	const q = `INSERT INTO auth_refresh_sessions (jti, user_id, expires_at) VALUES (:jti, :user_id, :expires_at)`
	_, err := r.db.NamedExecContext(ctx, q, s)
	return err
}

// Consume deletes the session and reports whether it existed. The delete is
// the check, so two concurrent refreshes with one token cannot both succeed.
func (r *RefreshRepo) Consume(ctx context.Context, jti string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_refresh_sessions WHERE jti = $1 AND expires_at > NOW()`, jti)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RefreshRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_refresh_sessions WHERE user_id = $1`, userID)
	return err
}
