package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/metrics"
)

// MerchantCredentials authenticate a shop against the gateway.
type MerchantCredentials struct {
	ShopID    string
	SecretKey string
}

// CreatedPayment is the gateway's answer to a payment creation.
type CreatedPayment struct {
	ID              string
	Status          string
	ConfirmationURL string
}

// Gateway creates payments on the external provider.
type Gateway interface {
	CreatePayment(ctx context.Context, creds MerchantCredentials, amount decimal.Decimal, currency string, orderID int64) (*CreatedPayment, error)
}

// PaymentGatewayError is returned for transport failures and non-2xx
// answers of the gateway.
type PaymentGatewayError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *PaymentGatewayError) Error() string {
	if e.Err != nil {
		return "payment gateway: " + e.Err.Error()
	}
	return fmt.Sprintf("payment gateway: status %d: %s", e.StatusCode, e.Body)
}

func (e *PaymentGatewayError) Unwrap() error { return e.Err }

// YooKassaClient talks to the YooKassa v3 payments API.
type YooKassaClient struct {
	httpClient *http.Client
	baseURL    string
	returnURL  string
	// NewKey returns the Idempotence-Key for a call.
	NewKey func() string
}

func NewYooKassaClient(cfg config.Payment) *YooKassaClient {
	return &YooKassaClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		returnURL:  cfg.ReturnURL,
		NewKey:     uuid.NewString,
	}
}

type amountBody struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type createPaymentRequest struct {
	Amount       amountBody `json:"amount"`
	Capture      bool       `json:"capture"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type createPaymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func (c *YooKassaClient) CreatePayment(ctx context.Context, creds MerchantCredentials, amount decimal.Decimal, currency string, orderID int64) (*CreatedPayment, error) {
	body := createPaymentRequest{
		Amount:      amountBody{Value: amount.StringFixed(2), Currency: currency},
		Capture:     true,
		Description: "Order #" + strconv.FormatInt(orderID, 10),
		Metadata:    map[string]string{"order_id": strconv.FormatInt(orderID, 10)},
	}
	body.Confirmation.Type = "redirect"
	body.Confirmation.ReturnURL = c.returnURL

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal payment: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.SetBasicAuth(creds.ShopID, creds.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", c.NewKey())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.GatewayRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &PaymentGatewayError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &PaymentGatewayError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &PaymentGatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out createPaymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &PaymentGatewayError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.ID == "" {
		return nil, &PaymentGatewayError{StatusCode: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("response without payment id")}
	}
	return &CreatedPayment{
		ID:              out.ID,
		Status:          out.Status,
		ConfirmationURL: out.Confirmation.ConfirmationURL,
	}, nil
}
