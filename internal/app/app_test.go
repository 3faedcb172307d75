package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/payment"
)

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) Send(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[email] = token
	return nil
}

type stubGateway struct{}

func (stubGateway) CreatePayment(_ context.Context, _ payment.MerchantCredentials, _ decimal.Decimal, _ string, orderID int64) (*payment.CreatedPayment, error) {
	return &payment.CreatedPayment{ID: "pay-" + strconv.FormatInt(orderID, 10), ConfirmationURL: "https://pay.example.com/c"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		PublicBaseURL: "https://shop.example.com",
		Auth: config.Auth{
			JWTSecret:      "0123456789abcdef0123456789abcdef",
			AccessTTL:      15 * time.Minute,
			RefreshTTL:     24 * time.Hour,
			ResetTTL:       time.Hour,
			Leeway:         5 * time.Second,
			ResetSingleUse: true,
		},
		Mail:    config.Mail{ResetURL: "https://shop.example.com/reset?token=%s", Timeout: time.Second},
		Payment: config.Payment{Currency: "RUB"},
		// httptest requests come from 192.0.2.1
		Webhook: config.Webhook{AllowedSources: []string{"192.0.2.0/24"}, MaxBodyBytes: 1 << 16},
	}
}

type client struct {
	t *testing.T
	h http.Handler
}

func (c client) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, path, rd)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, r)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func newApp(t *testing.T) (*app.App, *captureMailer, client) {
	t.Helper()
	mailer := &captureMailer{tokens: map[string]string{}}
	a, err := app.New(testConfig(), zap.NewNop().Sugar(), app.MemoryRepos(memstore.New()), app.Options{
		Mailer:  mailer,
		Gateway: stubGateway{},
		Hasher:  credential.BcryptHasher{Cost: 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	return a, mailer, client{t: t, h: a.Handler}
}

func TestAuthFlow(t *testing.T) {
	_, _, c := newApp(t)

	w, body := c.do(http.MethodPost, "/v1/api/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "pw123456", "name": "Alice",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body)
	}
	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Fatalf("register returned no tokens: %v", body)
	}

	w, _ = c.do(http.MethodPost, "/v1/api/auth/register", "", map[string]string{
		"email": "A@X.com", "password": "pw123456", "name": "Again",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", w.Code)
	}

	w, body = c.do(http.MethodPost, "/v1/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "pw123456"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body)
	}
	access, _ := body["access_token"].(string)
	refresh, _ := body["refresh_token"].(string)

	w, body = c.do(http.MethodGet, "/v1/api/auth/me", access, nil)
	if w.Code != http.StatusOK || body["email"] != "a@x.com" || body["name"] != "Alice" {
		t.Fatalf("me: %d %v", w.Code, body)
	}
	if _, leaked := body["password_hash"]; leaked {
		t.Fatal("me exposes the password hash")
	}

	w, _ = c.do(http.MethodGet, "/v1/api/auth/me", "", nil)
	if w.Code != http.StatusUnauthorized || w.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("me without token: %d", w.Code)
	}
	w, _ = c.do(http.MethodGet, "/v1/api/auth/me", refresh, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me with refresh token: %d", w.Code)
	}

	w, body = c.do(http.MethodPost, "/v1/api/auth/refresh", "", map[string]string{"refresh_token": refresh})
	if w.Code != http.StatusOK || body["access_token"] == "" {
		t.Fatalf("refresh: %d %v", w.Code, body)
	}
	w, _ = c.do(http.MethodPost, "/v1/api/auth/refresh", "", map[string]string{"refresh_token": access})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh with access token: %d", w.Code)
	}

	w, _ = c.do(http.MethodPost, "/v1/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong-pw"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", w.Code)
	}

	if w, _ := c.do(http.MethodDelete, "/v1/api/auth/me", access, nil); w.Code != http.StatusOK {
		t.Fatalf("close account: %d", w.Code)
	}
	if w, _ := c.do(http.MethodGet, "/v1/api/auth/me", access, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("me after close: %d", w.Code)
	}
}

func TestPasswordRecoveryFlow(t *testing.T) {
	a, mailer, c := newApp(t)
	if w, _ := c.do(http.MethodPost, "/v1/api/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "pw123456", "name": "Alice",
	}); w.Code != http.StatusCreated {
		t.Fatalf("register: %d", w.Code)
	}

	for _, email := range []string{"a@x.com", "ghost@x.com"} {
		w, body := c.do(http.MethodPost, "/v1/api/auth/forgot", "", map[string]string{"email": email})
		if w.Code != http.StatusOK || body["message"] == "" {
			t.Fatalf("forgot %s: %d %v", email, w.Code, body)
		}
	}
	a.Recovery.Wait()
	if len(mailer.tokens) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(mailer.tokens))
	}
	token := mailer.tokens["a@x.com"]

	w, _ := c.do(http.MethodPost, "/v1/api/auth/reset", "", map[string]string{"token": token, "new_password": "newpass99"})
	if w.Code != http.StatusOK {
		t.Fatalf("reset: %d %s", w.Code, w.Body)
	}
	w, _ = c.do(http.MethodPost, "/v1/api/auth/reset", "", map[string]string{"token": token, "new_password": "another99"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("replayed reset: %d", w.Code)
	}

	if w, _ := c.do(http.MethodPost, "/v1/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "pw123456"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("old password still works: %d", w.Code)
	}
	if w, _ := c.do(http.MethodPost, "/v1/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "newpass99"}); w.Code != http.StatusOK {
		t.Fatalf("new password rejected: %d", w.Code)
	}
}

func TestStorefrontCheckoutAndWebhook(t *testing.T) {
	_, _, c := newApp(t)
	_, body := c.do(http.MethodPost, "/v1/api/auth/register", "", map[string]string{
		"email": "owner@x.com", "password": "pw123456", "name": "Owner",
	})
	token, _ := body["access_token"].(string)

	w, body := c.do(http.MethodPost, "/v1/api/stores", token, map[string]string{"name": "Tea House"})
	if w.Code != http.StatusCreated || body["slug"] != "tea-house" {
		t.Fatalf("create store: %d %v", w.Code, body)
	}
	storeID := int64(body["id"].(float64))
	storePath := "/v1/api/stores/" + strconv.FormatInt(storeID, 10)

	if w, _ := c.do(http.MethodGet, "/v1/api/public/tea-house", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unpublished storefront: %d", w.Code)
	}
	w, _ = c.do(http.MethodPut, storePath+"/design", token, map[string]any{
		"design_data": map[string]any{"storeLogo": "https://cdn.example.com/tea.png"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update design: %d %s", w.Code, w.Body)
	}
	if w, _ := c.do(http.MethodPost, storePath+"/design/publish", token, nil); w.Code != http.StatusOK {
		t.Fatalf("publish: %d", w.Code)
	}
	w, body = c.do(http.MethodGet, "/v1/api/public/tea-house", "", nil)
	if w.Code != http.StatusOK || body["logo_url"] != "https://cdn.example.com/tea.png" {
		t.Fatalf("public storefront: %d %v", w.Code, body)
	}

	w, body = c.do(http.MethodPost, "/v1/api/orders", "", map[string]any{
		"store_id":       storeID,
		"customer_email": "buyer@x.com",
		"items":          []map[string]any{{"product_id": 7, "product_name": "Oolong", "quantity": 2, "price": "250.00"}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", w.Code, w.Body)
	}
	orderID := int64(body["id"].(float64))
	paymentID, _ := body["payment_id"].(string)
	orderPath := "/v1/api/orders/" + strconv.FormatInt(orderID, 10)

	if w, _ := c.do(http.MethodGet, orderPath, "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous order read: %d", w.Code)
	}

	notification := `{"type":"notification","event":"payment.succeeded","object":{"id":"` + paymentID +
		`","status":"succeeded","amount":{"value":"500.00","currency":"RUB"},"metadata":{"order_id":"` + strconv.FormatInt(orderID, 10) + `"}}}`
	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/v1/api/webhook/payment-status", strings.NewReader(notification))
		rec := httptest.NewRecorder()
		c.h.ServeHTTP(rec, r)
		if rec.Code != http.StatusOK {
			t.Fatalf("webhook delivery %d: %d %s", i+1, rec.Code, rec.Body)
		}
	}

	w, body = c.do(http.MethodGet, orderPath, token, nil)
	if w.Code != http.StatusOK || body["payment_status"] != "paid" || body["status"] != "processing" {
		t.Fatalf("order after webhook: %d %v", w.Code, body)
	}

	r := httptest.NewRequest(http.MethodPost, "/v1/api/webhook/payment-status", strings.NewReader(notification))
	r.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign webhook: %d", rec.Code)
	}
}

func TestHealthMetricsAndHeaders(t *testing.T) {
	_, _, c := newApp(t)

	w, _ := c.do(http.MethodGet, "/v1/api/health", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("health: %d %q", w.Code, w.Body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}

	w, _ = c.do(http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "shop_http_requests_total") {
		t.Fatalf("metrics: %d", w.Code)
	}
}
