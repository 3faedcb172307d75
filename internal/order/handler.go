package order

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/payment"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var gwErr *payment.PaymentGatewayError
	switch {
	case errors.As(err, &gwErr):
		utilities.WriteError(w, http.StatusBadGateway, "payment gateway error")
	case errors.Is(err, ErrOrderNotFound):
		utilities.WriteError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, store.ErrStoreNotFound):
		utilities.WriteError(w, http.StatusNotFound, "store not found")
	case errors.Is(err, store.ErrForbidden):
		utilities.WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrInvalidInput):
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Errorw("order request failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// Create is the public checkout endpoint.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	o, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Infow("order created", "order_id", o.ID, "store_id", o.StoreID)
	utilities.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := utilities.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, _ := auth.IdentityFrom(r.Context())
	o, err := h.svc.Get(r.Context(), id, u.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) ListByStore(w http.ResponseWriter, r *http.Request) {
	id, err := utilities.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, _ := auth.IdentityFrom(r.Context())
	orders, err := h.svc.ListByStore(r.Context(), id, u.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, orders)
}
