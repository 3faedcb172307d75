package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/order/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/payment"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/database"
)

var (
	ErrOrderNotFound = entity.ErrOrderNotFound
	ErrInvalidInput  = errors.New("invalid input")
)

const paymentMethodYooKassa = "yookassa"

type Repository interface {
	// Create stores the order with its items and fills in ids.
	Create(ctx context.Context, o *entity.Order) (int64, error)
	Get(ctx context.Context, id int64) (*entity.Order, error)
	ListByStore(ctx context.Context, storeID int64) ([]*entity.Order, error)
	SetPayment(ctx context.Context, id int64, method, paymentID, confirmationURL string) error
}

type ItemInput struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	VariantInfo database.JSONB  `json:"variant_info"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type CreateInput struct {
	StoreID         int64           `json:"store_id"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerName    *string         `json:"customer_name"`
	CustomerPhone   *string         `json:"customer_phone"`
	ShippingAddress database.JSONB  `json:"shipping_address"`
	BillingAddress  database.JSONB  `json:"billing_address"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Notes           *string         `json:"notes"`
	Items           []ItemInput     `json:"items"`
}

// Service handles checkout and order reads. A nil gateway leaves orders
// unpaid without a payment reference.
type Service struct {
	repo     Repository
	stores   *store.Service
	gateway  payment.Gateway
	creds    payment.MerchantCredentials
	currency string
	logger   *zap.SugaredLogger
}

func NewService(r Repository, stores *store.Service, gateway payment.Gateway, creds payment.MerchantCredentials, currency string, logger *zap.SugaredLogger) *Service {
	return &Service{repo: r, stores: stores, gateway: gateway, creds: creds, currency: currency, logger: logger}
}

func validate(in *CreateInput) error {
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	if in.StoreID <= 0 {
		return fmt.Errorf("%w: store_id is required", ErrInvalidInput)
	}
	if !strings.Contains(in.CustomerEmail, "@") {
		return fmt.Errorf("%w: customer_email is invalid", ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: items must not be empty", ErrInvalidInput)
	}
	sum := decimal.Zero
	for i, it := range in.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: items[%d].quantity must be positive", ErrInvalidInput, i)
		}
		if it.Price.IsNegative() {
			return fmt.Errorf("%w: items[%d].price must not be negative", ErrInvalidInput, i)
		}
		if strings.TrimSpace(it.ProductName) == "" {
			return fmt.Errorf("%w: items[%d].product_name is required", ErrInvalidInput, i)
		}
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if in.TotalAmount.IsZero() {
		in.TotalAmount = sum
	}
	if !in.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: total_amount must be positive", ErrInvalidInput)
	}
	in.TotalAmount = in.TotalAmount.Round(2)
	return nil
}

// Create stores a pending, unpaid order and asks the gateway for a payment.
// A gateway failure is returned as *payment.PaymentGatewayError; the order
// stays unpaid without a payment reference.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	st, err := s.stores.Get(ctx, in.StoreID)
	if err != nil {
		return nil, err
	}
	if !st.IsActive {
		return nil, store.ErrStoreNotFound
	}

	o := &entity.Order{
		StoreID:         in.StoreID,
		CustomerEmail:   in.CustomerEmail,
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		TotalAmount:     in.TotalAmount,
		Currency:        s.currency,
		Status:          entity.StatusPending,
		PaymentStatus:   entity.PaymentUnpaid,
		Notes:           in.Notes,
	}
	for _, it := range in.Items {
		o.Items = append(o.Items, entity.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			VariantInfo: it.VariantInfo,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	id, err := s.repo.Create(ctx, o)
	if err != nil {
		return nil, err
	}

	if s.gateway != nil {
		p, err := s.gateway.CreatePayment(ctx, s.creds, o.TotalAmount, s.currency, id)
		if err != nil {
			s.logger.Errorw("create payment failed", "order_id", id, "err", err)
			var gwErr *payment.PaymentGatewayError
			if errors.As(err, &gwErr) {
				return nil, err
			}
			return nil, &payment.PaymentGatewayError{Err: err}
		}
		if err := s.repo.SetPayment(ctx, id, paymentMethodYooKassa, p.ID, p.ConfirmationURL); err != nil {
			return nil, fmt.Errorf("store payment reference: %w", err)
		}
		s.logger.Infow("payment created", "order_id", id, "payment_id", p.ID)
	}
	return s.repo.Get(ctx, id)
}

// Get returns an order of a store owned by userID.
func (s *Service) Get(ctx context.Context, id, userID int64) (*entity.Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.stores.GetOwned(ctx, o.StoreID, userID); err != nil {
		if errors.Is(err, store.ErrStoreNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (s *Service) ListByStore(ctx context.Context, storeID, userID int64) ([]*entity.Order, error) {
	if _, err := s.stores.GetOwned(ctx, storeID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByStore(ctx, storeID)
}
