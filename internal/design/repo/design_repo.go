package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/design"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/design/entity"
)

// Repo stores designs in store_designs, one row per store.
type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// EnsureTable creates store_designs. The jsonb columns hold the editor
// payload verbatim.
func (r *Repo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS store_designs (
  id BIGSERIAL PRIMARY KEY,
  store_id BIGINT NOT NULL UNIQUE REFERENCES stores(id) ON DELETE CASCADE,
  design_data JSONB NOT NULL DEFAULT '{}'::jsonb,
  theme JSONB,
  custom_css TEXT,
  is_published BOOLEAN NOT NULL DEFAULT false,
  version INTEGER NOT NULL DEFAULT 1,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const designColumns = `id, store_id, design_data, theme, custom_css, is_published, version, created_at, updated_at`

func (r *Repo) GetByStore(ctx context.Context, storeID int64) (*entity.Design, error) {
	var row entity.Design
	err := r.db.GetContext(ctx, &row, `SELECT `+designColumns+` FROM store_designs WHERE store_id=$1`, storeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, design.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *Repo) Create(ctx context.Context, d *entity.Design) error {
	const q = `INSERT INTO store_designs (store_id, design_data, theme, custom_css, is_published, version)
		VALUES (:store_id, :design_data, :theme, :custom_css, :is_published, :version)
		ON CONFLICT (store_id) DO NOTHING`
	_, err := r.db.NamedExecContext(ctx, q, d)
	return err
}

func (r *Repo) Update(ctx context.Context, d *entity.Design, expected int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE store_designs SET design_data=$3, theme=$4, custom_css=$5, is_published=$6, updated_at=NOW()
		WHERE store_id=$1 AND version=$2`,
		d.StoreID, expected, d.DesignData, d.Theme, d.CustomCSS, d.IsPublished)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) Publish(ctx context.Context, storeID int64) (*entity.Design, error) {
	var row entity.Design
	err := r.db.GetContext(ctx, &row, `
INSERT INTO store_designs (store_id, design_data, is_published, version)
VALUES ($1, '{}'::jsonb, true, 1)
ON CONFLICT (store_id) DO UPDATE
  SET is_published = true, version = store_designs.version + 1, updated_at = NOW()
RETURNING `+designColumns, storeID)
	if err != nil {
		return nil, err
	}
	return &row, nil
}
