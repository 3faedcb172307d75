package router

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/design"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/order"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/payment"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/recovery"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

// Prefix is the path prefix of every API route.
const Prefix = "/v1/api"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

type requestIDKey struct{}

// RequestID returns the id assigned by RequestIDMiddleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware assigns a snowflake id to every request and echoes it
// in X-Request-ID.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := utilities.NewRequestID()
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// LoggingMiddleware logs requests at debug level and records request metrics
// labelled with the matched route pattern.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur.Seconds())
			logger.Debugw("http request",
				"request_id", RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// JSON API: nothing should ever be rendered from our responses
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}

			// HSTS only over TLS, 30 days
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Auth     *auth.Handler
	AuthSvc  *auth.Service
	Recovery *recovery.Handler
	Payment  *payment.Handler
	Store    *store.Handler
	Design   *design.Handler
	Order    *order.Handler
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, h Handlers) http.Handler {
	mux := http.NewServeMux()
	bearer := auth.RequireBearer(h.AuthSvc, logger)
	protected := func(f http.HandlerFunc) http.Handler { return bearer(f) }

	mux.HandleFunc("GET "+Prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// auth
	mux.HandleFunc("POST "+Prefix+"/auth/register", h.Auth.Register)
	mux.HandleFunc("POST "+Prefix+"/auth/login", h.Auth.Login)
	mux.HandleFunc("POST "+Prefix+"/auth/refresh", h.Auth.Refresh)
	mux.Handle("GET "+Prefix+"/auth/me", protected(h.Auth.Me))
	mux.Handle("DELETE "+Prefix+"/auth/me", protected(h.Auth.CloseMe))
	mux.HandleFunc("POST "+Prefix+"/auth/forgot", h.Recovery.Forgot)
	mux.HandleFunc("POST "+Prefix+"/auth/reset", h.Recovery.Reset)

	// payment webhook
	mux.HandleFunc("POST "+Prefix+"/webhook/payment-status", h.Payment.PaymentStatus)
	mux.HandleFunc("POST "+Prefix+"/webhook/yookassa/payment-status", h.Payment.PaymentStatus)

	// stores
	mux.Handle("GET "+Prefix+"/stores", protected(h.Store.List))
	mux.Handle("POST "+Prefix+"/stores", protected(h.Store.Create))
	mux.Handle("GET "+Prefix+"/stores/{id}", protected(h.Store.Get))
	mux.Handle("PUT "+Prefix+"/stores/{id}", protected(h.Store.Update))
	mux.Handle("DELETE "+Prefix+"/stores/{id}", protected(h.Store.Delete))

	// design
	mux.Handle("GET "+Prefix+"/stores/{id}/design", protected(h.Design.Get))
	mux.Handle("PUT "+Prefix+"/stores/{id}/design", protected(h.Design.Update))
	mux.Handle("POST "+Prefix+"/stores/{id}/design/publish", protected(h.Design.Publish))
	mux.HandleFunc("GET "+Prefix+"/public/{slug}", h.Design.Public)

	// orders
	mux.HandleFunc("POST "+Prefix+"/orders", h.Order.Create)
	mux.Handle("GET "+Prefix+"/orders/{id}", protected(h.Order.Get))
	mux.Handle("GET "+Prefix+"/stores/{id}/orders", protected(h.Order.ListByStore))

	// request id, then logging, then security headers
	return RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}
