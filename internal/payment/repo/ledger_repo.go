package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/order/entity"
	orderrepo "github.com/ovaphlow/pitchfork/service-shop-go/internal/order/repo"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

// LedgerRepo records processed webhook deliveries in payment_webhook_events.
type LedgerRepo struct {
	db *sqlx.DB
}

func NewLedgerRepo(db *sqlx.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS payment_webhook_events (
  event_key TEXT PRIMARY KEY,
  id TEXT NOT NULL,
  order_id BIGINT NOT NULL,
  received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payment_webhook_events_order ON payment_webhook_events(order_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// ApplyOnce inserts key and updates the order in one transaction. Concurrent
// deliveries race on the primary key: the loser waits for the winner and then
// inserts nothing. A failed or cancelled attempt rolls back both writes, so
// the provider's retry is processed from scratch.
func (r *LedgerRepo) ApplyOnce(ctx context.Context, key string, orderID int64, t entity.PaymentTransition) (bool, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO payment_webhook_events (event_key, id, order_id) VALUES ($1, $2, $3) ON CONFLICT (event_key) DO NOTHING`,
		key, utilities.NewKSUID(), orderID)
	if err != nil {
		return false, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, false, err
	}
	if n == 0 {
		return false, false, nil
	}

	changed, err := orderrepo.TransitionPayment(ctx, tx, orderID, t)
	if err != nil {
		return false, false, err
	}
	if err := tx.Commit(); err != nil {
		return false, false, err
	}
	return true, changed, nil
}
