package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store/entity"
)

type StoreRepo struct {
	db *sqlx.DB
}

func NewStoreRepo(db *sqlx.DB) *StoreRepo { return &StoreRepo{db: db} }

func (r *StoreRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS stores (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  name VARCHAR(255) NOT NULL,
  description TEXT,
  color VARCHAR(20) NOT NULL DEFAULT '#2563EBCC',
  slug VARCHAR(255) NOT NULL UNIQUE,
  logo_url TEXT,
  domain VARCHAR(255),
  is_active BOOLEAN NOT NULL DEFAULT true,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_stores_user ON stores(user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const storeColumns = `id, user_id, name, description, color, slug, logo_url, domain, is_active, created_at, updated_at`

func (r *StoreRepo) Create(ctx context.Context, s *entity.Store) (int64, error) {
	const q = `INSERT INTO stores (user_id, name, description, color, slug, logo_url, domain, is_active)
		VALUES (:user_id, :name, :description, :color, :slug, :logo_url, :domain, :is_active) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, s)
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
	if err := rows.Scan(&s.ID); err != nil {
		return 0, err
	}
	return s.ID, nil
}

func (r *StoreRepo) GetByID(ctx context.Context, id int64) (*entity.Store, error) {
	var row entity.Store
	if err := r.db.GetContext(ctx, &row, `SELECT `+storeColumns+` FROM stores WHERE id=$1`, id); err != nil {
		return nil, mapErr(err)
	}
	return &row, nil
}

func (r *StoreRepo) GetBySlug(ctx context.Context, slug string) (*entity.Store, error) {
	var row entity.Store
	if err := r.db.GetContext(ctx, &row, `SELECT `+storeColumns+` FROM stores WHERE slug=$1`, slug); err != nil {
		return nil, mapErr(err)
	}
	return &row, nil
}

func (r *StoreRepo) ListByUser(ctx context.Context, userID int64) ([]*entity.Store, error) {
	rows := []*entity.Store{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+storeColumns+` FROM stores WHERE user_id=$1 ORDER BY id`, userID); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *StoreRepo) Update(ctx context.Context, s *entity.Store) error {
	const q = `UPDATE stores SET name=:name, description=:description, color=:color, slug=:slug,
		logo_url=:logo_url, domain=:domain, updated_at=NOW() WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, s)
	if err != nil {
		return mapErr(err)
	}
	return oneRow(res)
}

func (r *StoreRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stores WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (r *StoreRepo) SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var taken bool
	err := r.db.GetContext(ctx, &taken, `SELECT EXISTS (SELECT 1 FROM stores WHERE slug=$1 AND id<>$2)`, slug, excludeID)
	return taken, err
}

func (r *StoreRepo) SetLogo(ctx context.Context, id int64, logoURL string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE stores SET logo_url=$2, updated_at=NOW() WHERE id=$1`, id, logoURL)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrStoreNotFound
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrStoreNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return store.ErrSlugTaken
	}
	return err
}
