package order_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/order"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/order/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/payment"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store"
)

type fakeGateway struct {
	calls   int
	orderID int64
	amount  decimal.Decimal
	err     error
}

func (g *fakeGateway) CreatePayment(_ context.Context, _ payment.MerchantCredentials, amount decimal.Decimal, _ string, orderID int64) (*payment.CreatedPayment, error) {
	g.calls++
	g.orderID = orderID
	g.amount = amount
	if g.err != nil {
		return nil, g.err
	}
	return &payment.CreatedPayment{ID: "pay-42", Status: "pending", ConfirmationURL: "https://pay.example.com/c/42"}, nil
}

type fixture struct {
	ms      *memstore.Store
	svc     *order.Service
	storeID int64
}

func newFixture(t *testing.T, gw payment.Gateway) *fixture {
	t.Helper()
	ms := memstore.New()
	stores := store.NewService(ms.Stores())
	st, err := stores.Create(context.Background(), 1, store.CreateInput{Name: "Shop"})
	if err != nil {
		t.Fatal(err)
	}
	svc := order.NewService(ms.Orders(), stores, gw, payment.MerchantCredentials{ShopID: "1", SecretKey: "k"}, "RUB", zap.NewNop().Sugar())
	return &fixture{ms: ms, svc: svc, storeID: st.ID}
}

func (f *fixture) input() order.CreateInput {
	return order.CreateInput{
		StoreID:       f.storeID,
		CustomerEmail: " buyer@x.com ",
		Items: []order.ItemInput{
			{ProductID: 1, ProductName: "Mug", Quantity: 2, Price: decimal.RequireFromString("150.50")},
			{ProductID: 2, ProductName: "Tea", Quantity: 1, Price: decimal.RequireFromString("99.999")},
		},
	}
}

func TestCreateWithPayment(t *testing.T) {
	gw := &fakeGateway{}
	f := newFixture(t, gw)
	o, err := f.svc.Create(context.Background(), f.input())
	if err != nil {
		t.Fatal(err)
	}
	if gw.calls != 1 || gw.orderID != o.ID {
		t.Fatalf("gateway calls %d for order %d", gw.calls, gw.orderID)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("401.00")) || !gw.amount.Equal(o.TotalAmount) {
		t.Fatalf("total %s, charged %s", o.TotalAmount, gw.amount)
	}
	if o.PaymentID == nil || *o.PaymentID != "pay-42" {
		t.Fatalf("payment id = %v", o.PaymentID)
	}
	if o.ConfirmationURL == nil || *o.ConfirmationURL != "https://pay.example.com/c/42" {
		t.Fatalf("confirmation url = %v", o.ConfirmationURL)
	}
	if o.Status != entity.StatusPending || o.PaymentStatus != entity.PaymentUnpaid {
		t.Fatalf("status %s/%s", o.Status, o.PaymentStatus)
	}
	if o.CustomerEmail != "buyer@x.com" || len(o.Items) != 2 || o.Currency != "RUB" {
		t.Fatalf("got %+v", o)
	}
}

func TestCreateKeepsExplicitTotal(t *testing.T) {
	f := newFixture(t, nil)
	in := f.input()
	in.TotalAmount = decimal.RequireFromString("10.005")
	o, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("10.01")) {
		t.Fatalf("total = %s", o.TotalAmount)
	}
	if o.PaymentID != nil {
		t.Fatalf("payment id set without a gateway: %v", *o.PaymentID)
	}
}

func TestCreateGatewayFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"typed", &payment.PaymentGatewayError{StatusCode: 401, Body: "bad credentials"}},
		{"transport", errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakeGateway{err: tt.err})
			_, err := f.svc.Create(context.Background(), f.input())
			var gwErr *payment.PaymentGatewayError
			if !errors.As(err, &gwErr) {
				t.Fatalf("expected PaymentGatewayError, got %v", err)
			}
			orders, _ := f.ms.Orders().ListByStore(context.Background(), f.storeID)
			if len(orders) != 1 || orders[0].PaymentID != nil || orders[0].PaymentStatus != entity.PaymentUnpaid {
				t.Fatalf("stored orders: %+v", orders)
			}
		})
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name   string
		mutate func(*order.CreateInput)
		want   error
	}{
		{"no store", func(in *order.CreateInput) { in.StoreID = 0 }, order.ErrInvalidInput},
		{"bad email", func(in *order.CreateInput) { in.CustomerEmail = "buyer" }, order.ErrInvalidInput},
		{"no items", func(in *order.CreateInput) { in.Items = nil }, order.ErrInvalidInput},
		{"zero quantity", func(in *order.CreateInput) { in.Items[0].Quantity = 0 }, order.ErrInvalidInput},
		{"negative price", func(in *order.CreateInput) { in.Items[0].Price = decimal.NewFromInt(-1) }, order.ErrInvalidInput},
		{"unnamed item", func(in *order.CreateInput) { in.Items[1].ProductName = " " }, order.ErrInvalidInput},
		{"negative total", func(in *order.CreateInput) { in.TotalAmount = decimal.NewFromInt(-5) }, order.ErrInvalidInput},
		{"unknown store", func(in *order.CreateInput) { in.StoreID = 999 }, store.ErrStoreNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input()
			tt.mutate(&in)
			if _, err := f.svc.Create(context.Background(), in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReadsRequireOwner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	o, err := f.svc.Create(ctx, f.input())
	if err != nil {
		t.Fatal(err)
	}

	if got, err := f.svc.Get(ctx, o.ID, 1); err != nil || got.ID != o.ID {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := f.svc.Get(ctx, o.ID, 2); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("stranger get: %v", err)
	}
	if _, err := f.svc.Get(ctx, 999, 1); !errors.Is(err, order.ErrOrderNotFound) {
		t.Fatalf("missing get: %v", err)
	}
	if list, err := f.svc.ListByStore(ctx, f.storeID, 1); err != nil || len(list) != 1 {
		t.Fatalf("owner list: %d, %v", len(list), err)
	}
	if _, err := f.svc.ListByStore(ctx, f.storeID, 2); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("stranger list: %v", err)
	}
}
