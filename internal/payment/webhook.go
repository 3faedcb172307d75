package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/order/entity"
)

// Event types sent by the provider.
const (
	EventSucceeded = "payment.succeeded"
	EventCanceled  = "payment.canceled"
)

var (
	ErrUnauthorizedOrigin = errors.New("unauthorized source address")
	ErrStaleCorrelation   = errors.New("notification outdated")
	ErrBadEvent           = errors.New("malformed payment event")
)

// Event is a webhook notification body.
type Event struct {
	Type   string        `json:"type"`
	Event  string        `json:"event"`
	Object PaymentObject `json:"object"`
}

// UnmarshalJSON decodes the payment object only for event types the webhook
// acts on, so notifications of other kinds never fail to decode.
func (e *Event) UnmarshalJSON(b []byte) error {
	var env struct {
		Type   string          `json:"type"`
		Event  string          `json:"event"`
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	*e = Event{Type: env.Type, Event: env.Event}
	if !knownEvent(env.Event) || len(env.Object) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Object, &e.Object); err != nil {
		return fmt.Errorf("%w: %w", ErrBadEvent, err)
	}
	return nil
}

type PaymentObject struct {
	ID                  string               `json:"id"`
	Status              string               `json:"status"`
	Amount              Amount               `json:"amount"`
	Metadata            Metadata             `json:"metadata"`
	CancellationDetails *CancellationDetails `json:"cancellation_details,omitempty"`
}

type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

type Metadata struct {
	OrderID OrderRef `json:"order_id"`
}

type CancellationDetails struct {
	Party  string `json:"party"`
	Reason string `json:"reason"`
}

// OrderRef is an order id sent back in metadata, either as a JSON string
// or a number.
type OrderRef int64

func (o *OrderRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*o = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("order_id: %w", err)
	}
	*o = OrderRef(id)
	return nil
}

// Result tells what a delivery did.
type Result string

const (
	ResultApplied   Result = "applied"
	ResultNoop      Result = "noop"
	ResultDuplicate Result = "duplicate"
	ResultIgnored   Result = "ignored"
)

// OrderStore is the order record collaborator of the webhook.
type OrderStore interface {
	Get(ctx context.Context, id int64) (*entity.Order, error)
}

// EventLedger remembers processed deliveries.
type EventLedger interface {
	// ApplyOnce records key and applies t to an unpaid order as one unit.
	// claimed is false when key was already recorded, and the order is left
	// alone then. On error neither the record nor the transition persists.
	ApplyOnce(ctx context.Context, key string, orderID int64, t entity.PaymentTransition) (claimed, changed bool, err error)
}

// Webhook maps provider events onto order payment transitions.
type Webhook struct {
	orders OrderStore
	ledger EventLedger
	logger *zap.SugaredLogger
}

func NewWebhook(orders OrderStore, ledger EventLedger, logger *zap.SugaredLogger) *Webhook {
	return &Webhook{orders: orders, ledger: ledger, logger: logger}
}

// Process correlates ev with its order and applies it. Repeated deliveries
// of the same event leave the order unchanged. Event types other than
// succeeded and canceled are acknowledged without any lookup.
func (w *Webhook) Process(ctx context.Context, ev Event) (Result, error) {
	if !knownEvent(ev.Event) {
		w.logger.Infow("ignoring payment event", "event", ev.Event, "payment_id", ev.Object.ID)
		return ResultIgnored, nil
	}

	orderID := int64(ev.Object.Metadata.OrderID)
	if ev.Object.ID == "" || orderID <= 0 {
		return "", ErrBadEvent
	}

	o, err := w.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, entity.ErrOrderNotFound) {
			return "", fmt.Errorf("%w: order %d not found", ErrStaleCorrelation, orderID)
		}
		return "", err
	}
	if o.PaymentID == nil || *o.PaymentID != ev.Object.ID {
		return "", fmt.Errorf("%w: order %d payment reference mismatch", ErrStaleCorrelation, orderID)
	}

	var t entity.PaymentTransition
	if ev.Event == EventSucceeded {
		if !ev.Object.Amount.Value.IsZero() && !ev.Object.Amount.Value.Equal(o.TotalAmount) {
			w.logger.Warnw("payment amount differs from order total",
				"order_id", orderID, "amount", ev.Object.Amount.Value.String(), "total", o.TotalAmount.String())
		}
		t = entity.PaymentTransition{PaymentStatus: entity.PaymentPaid, Status: entity.StatusProcessing}
	} else {
		reason := ""
		if ev.Object.CancellationDetails != nil {
			reason = ev.Object.CancellationDetails.Reason
		}
		t = entity.PaymentTransition{PaymentStatus: entity.PaymentCanceled, Status: entity.StatusCanceled, CancelReason: reason}
	}

	key := ev.Object.ID + ":" + ev.Event
	claimed, changed, err := w.ledger.ApplyOnce(ctx, key, orderID, t)
	if err != nil {
		return "", fmt.Errorf("apply %s to order %d: %w", ev.Event, orderID, err)
	}
	if !claimed {
		w.logger.Infow("duplicate payment event", "key", key, "order_id", orderID)
		return ResultDuplicate, nil
	}
	if !changed {
		w.logger.Infow("payment event did not change order",
			"event", ev.Event, "order_id", orderID, "payment_status", o.PaymentStatus)
		return ResultNoop, nil
	}

	if t.PaymentStatus == entity.PaymentCanceled {
		w.logger.Infow("payment canceled", "order_id", orderID, "payment_id", ev.Object.ID, "reason", t.CancelReason)
	} else {
		w.logger.Infow("payment succeeded", "order_id", orderID, "payment_id", ev.Object.ID, "amount", ev.Object.Amount.Value.String())
	}
	return ResultApplied, nil
}

func knownEvent(e string) bool {
	return e == EventSucceeded || e == EventCanceled
}
