package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// AuthEvents counts register/login/refresh/reset outcomes.
	AuthEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_auth_events_total",
			Help: "Authentication events by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	MailDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_mail_dispatch_total",
			Help: "Password reset mails by outcome",
		},
		[]string{"outcome"},
	)

	// WebhookEvents counts webhook deliveries by event type and result
	// (applied, duplicate, ignored, rejected).
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_payment_webhook_events_total",
			Help: "Payment webhook deliveries by event and result",
		},
		[]string{"event", "result"},
	)

	GatewayRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shop_payment_gateway_request_duration_seconds",
			Help:    "Duration of payment creation calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AuthEvents)
	prometheus.MustRegister(MailDispatchTotal)
	prometheus.MustRegister(WebhookEvents)
	prometheus.MustRegister(GatewayRequestDuration)
}
