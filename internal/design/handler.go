package design

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/design/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

// Handler contains dependencies for handling design endpoints.
type Handler struct {
	svc    *Service
	stores *store.Handler
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, stores *store.Handler, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, stores: stores, logger: logger}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrVersionConflict):
		utilities.WriteError(w, http.StatusConflict, "version conflict")
	case errors.Is(err, ErrNotPublished):
		utilities.WriteError(w, http.StatusNotFound, "store is not published")
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "design not found")
	default:
		h.stores.WriteError(w, err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := utilities.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, _ := auth.IdentityFrom(r.Context())
	d, err := h.svc.Get(r.Context(), id, u.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, d)
}

// Update accepts an optional If-Match header carrying the expected version.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := utilities.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	expected := 0
	if v := r.Header.Get("If-Match"); v != "" {
		expected, err = strconv.Atoi(v)
		if err != nil || expected <= 0 {
			utilities.WriteError(w, http.StatusBadRequest, "invalid If-Match version")
			return
		}
	}
	var p entity.Patch
	if err := utilities.DecodeJSON(r, &p); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, _ := auth.IdentityFrom(r.Context())
	d, err := h.svc.Update(r.Context(), id, u.ID, p, expected)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	id, err := utilities.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, _ := auth.IdentityFrom(r.Context())
	d, err := h.svc.Publish(r.Context(), id, u.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Infow("design published", "store_id", id, "version", d.Version)
	utilities.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Public(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, p)
}
