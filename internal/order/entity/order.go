package entity

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/database"
)

// ErrOrderNotFound is returned by order stores for a missing id.
var ErrOrderNotFound = errors.New("order not found")

// Lifecycle status.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCanceled   = "canceled"
)

// Payment status.
const (
	PaymentUnpaid   = "unpaid"
	PaymentPaid     = "paid"
	PaymentCanceled = "canceled"
)

type Order struct {
	ID                  int64           `db:"id" json:"id"`
	StoreID             int64           `db:"store_id" json:"store_id"`
	CustomerEmail       string          `db:"customer_email" json:"customer_email"`
	CustomerName        *string         `db:"customer_name" json:"customer_name"`
	CustomerPhone       *string         `db:"customer_phone" json:"customer_phone"`
	ShippingAddress     database.JSONB  `db:"shipping_address" json:"shipping_address"`
	BillingAddress      database.JSONB  `db:"billing_address" json:"billing_address"`
	TotalAmount         decimal.Decimal `db:"total_amount" json:"total_amount"`
	Currency            string          `db:"currency" json:"currency"`
	Status              string          `db:"status" json:"status"`
	PaymentMethod       *string         `db:"payment_method" json:"payment_method"`
	PaymentStatus       string          `db:"payment_status" json:"payment_status"`
	PaymentID           *string         `db:"payment_id" json:"payment_id"`
	PaymentCancelReason *string         `db:"payment_cancel_reason" json:"payment_cancel_reason"`
	ConfirmationURL     *string         `db:"confirmation_url" json:"confirmation_url"`
	Notes               *string         `db:"notes" json:"notes"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`

	Items []Item `db:"-" json:"items"`
}

type Item struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	VariantInfo database.JSONB  `db:"variant_info" json:"variant_info"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Price       decimal.Decimal `db:"price" json:"price"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// PaymentTransition moves an unpaid order to a final payment status. Status
// replaces the lifecycle status only while it is still pending.
type PaymentTransition struct {
	PaymentStatus string
	Status        string
	CancelReason  string
}
