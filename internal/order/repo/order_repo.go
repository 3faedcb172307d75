package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/order/entity"
)

type OrderRepo struct {
	db *sqlx.DB
}

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS orders (
  id BIGSERIAL PRIMARY KEY,
  store_id BIGINT NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
  customer_email VARCHAR(255) NOT NULL,
  customer_name VARCHAR(255),
  customer_phone VARCHAR(50),
  shipping_address JSONB,
  billing_address JSONB,
  total_amount NUMERIC(10,2) NOT NULL,
  currency VARCHAR(3) NOT NULL DEFAULT 'RUB',
  status VARCHAR(50) NOT NULL DEFAULT 'pending',
  payment_method VARCHAR(50),
  payment_status VARCHAR(50) NOT NULL DEFAULT 'unpaid',
  payment_id TEXT,
  payment_cancel_reason TEXT,
  confirmation_url TEXT,
  notes TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_orders_store ON orders(store_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_payment_id ON orders(payment_id) WHERE payment_id IS NOT NULL;
CREATE TABLE IF NOT EXISTS order_items (
  id BIGSERIAL PRIMARY KEY,
  order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id BIGINT NOT NULL,
  product_name VARCHAR(255) NOT NULL,
  variant_info JSONB,
  quantity INTEGER NOT NULL,
  price NUMERIC(10,2) NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const orderColumns = `id, store_id, customer_email, customer_name, customer_phone, shipping_address,
	billing_address, total_amount, currency, status, payment_method, payment_status, payment_id,
	payment_cancel_reason, confirmation_url, notes, created_at, updated_at`

const itemColumns = `id, order_id, product_id, product_name, variant_info, quantity, price, created_at`

// Create inserts the order and its items in one transaction.
func (r *OrderRepo) Create(ctx context.Context, o *entity.Order) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const q = `INSERT INTO orders (store_id, customer_email, customer_name, customer_phone, shipping_address,
		billing_address, total_amount, currency, status, payment_status, notes)
		VALUES (:store_id, :customer_email, :customer_name, :customer_phone, :shipping_address,
		:billing_address, :total_amount, :currency, :status, :payment_status, :notes) RETURNING id`
	stmt, err := tx.PrepareNamedContext(ctx, q)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	if err := stmt.GetContext(ctx, &o.ID, o); err != nil {
		return 0, err
	}

	const qi = `INSERT INTO order_items (order_id, product_id, product_name, variant_info, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := tx.GetContext(ctx, &it.ID, qi, it.OrderID, it.ProductID, it.ProductName, it.VariantInfo, it.Quantity, it.Price); err != nil {
			return 0, fmt.Errorf("insert item %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return o.ID, nil
}

func (r *OrderRepo) Get(ctx context.Context, id int64) (*entity.Order, error) {
	var o entity.Order
	if err := r.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrOrderNotFound
		}
		return nil, err
	}
	o.Items = []entity.Item{}
	if err := r.db.SelectContext(ctx, &o.Items, `SELECT `+itemColumns+` FROM order_items WHERE order_id=$1 ORDER BY id`, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) ListByStore(ctx context.Context, storeID int64) ([]*entity.Order, error) {
	orders := []*entity.Order{}
	if err := r.db.SelectContext(ctx, &orders, `SELECT `+orderColumns+` FROM orders WHERE store_id=$1 ORDER BY id DESC`, storeID); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]int64, len(orders))
	byID := make(map[int64]*entity.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		o.Items = []entity.Item{}
		byID[o.ID] = o
	}
	var items []entity.Item
	if err := r.db.SelectContext(ctx, &items, `SELECT `+itemColumns+` FROM order_items WHERE order_id = ANY($1) ORDER BY id`, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, it := range items {
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return orders, nil
}

func (r *OrderRepo) SetPayment(ctx context.Context, id int64, method, paymentID, confirmationURL string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_method=$2, payment_id=$3, confirmation_url=NULLIF($4, ''), updated_at=NOW() WHERE id=$1`,
		id, method, paymentID, confirmationURL)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrOrderNotFound
	}
	return nil
}

// TransitionPayment applies t through ex, which is usually the transaction
// that also records the webhook delivery. It only touches unpaid orders, so a
// repeated or late notification cannot move an order twice.
func TransitionPayment(ctx context.Context, ex sqlx.ExecerContext, id int64, t entity.PaymentTransition) (bool, error) {
	res, err := ex.ExecContext(ctx, `
UPDATE orders SET
  payment_status = $2,
  status = CASE WHEN status = 'pending' THEN $3 ELSE status END,
  payment_cancel_reason = COALESCE(NULLIF($4, ''), payment_cancel_reason),
  updated_at = NOW()
WHERE id = $1 AND payment_status = 'unpaid'`,
		id, t.PaymentStatus, t.Status, t.CancelReason)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
