package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

// Handler serves the payment status webhook.
type Handler struct {
	webhook *Webhook
	allow   *AllowList
	maxBody int64
	logger  *zap.SugaredLogger
}

func NewHandler(webhook *Webhook, allow *AllowList, maxBody int64, logger *zap.SugaredLogger) *Handler {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{webhook: webhook, allow: allow, maxBody: maxBody, logger: logger}
}

type statusResponse struct {
	Status string `json:"status"`
}

// PaymentStatus answers 401 for foreign sources, 400 for bad or stale
// notifications and 200 for everything it acknowledged.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	if !h.allow.Allowed(r) {
		metrics.WebhookEvents.WithLabelValues("", "unauthorized").Inc()
		h.logger.Warnw("webhook from disallowed source", "remote", r.RemoteAddr, "xff", r.Header.Get("X-Forwarded-For"))
		utilities.WriteError(w, http.StatusUnauthorized, ErrUnauthorizedOrigin.Error())
		return
	}

	var ev Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err := dec.Decode(&ev); err != nil {
		metrics.WebhookEvents.WithLabelValues("", "bad_request").Inc()
		h.logger.Debugw("invalid webhook body", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	res, err := h.webhook.Process(r.Context(), ev)
	if err != nil {
		switch {
		case errors.Is(err, ErrStaleCorrelation):
			metrics.WebhookEvents.WithLabelValues(eventLabel(ev.Event), "stale").Inc()
			h.logger.Warnw("stale payment notification", "payment_id", ev.Object.ID, "err", err)
			utilities.WriteError(w, http.StatusBadRequest, ErrStaleCorrelation.Error())
		case errors.Is(err, ErrBadEvent):
			metrics.WebhookEvents.WithLabelValues(eventLabel(ev.Event), "bad_request").Inc()
			utilities.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			metrics.WebhookEvents.WithLabelValues(eventLabel(ev.Event), "error").Inc()
			h.logger.Errorw("process payment notification failed", "payment_id", ev.Object.ID, "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	metrics.WebhookEvents.WithLabelValues(eventLabel(ev.Event), string(res)).Inc()
	utilities.WriteJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// eventLabel keeps the metric label set bounded.
func eventLabel(e string) string {
	switch e {
	case EventSucceeded, EventCanceled:
		return e
	default:
		return "other"
	}
}
