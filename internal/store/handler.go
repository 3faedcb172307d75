package store

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/store/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// WriteError maps store errors to a response.
func (h *Handler) WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrStoreNotFound):
		utilities.WriteError(w, http.StatusNotFound, "store not found")
	case errors.Is(err, ErrForbidden):
		utilities.WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrSlugTaken):
		utilities.WriteError(w, http.StatusConflict, "slug already taken")
	case errors.Is(err, ErrInvalidInput):
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Errorw("store request failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.IdentityFrom(r.Context())
	stores, err := h.svc.List(r.Context(), u.ID)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, stores)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := utilities.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, _ := auth.IdentityFrom(r.Context())
	st, err := h.svc.GetOwned(r.Context(), id, u.ID)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, _ := auth.IdentityFrom(r.Context())
	st, err := h.svc.Create(r.Context(), u.ID, in)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.logger.Infow("store created", "store_id", st.ID, "user_id", u.ID, "slug", st.Slug)
	utilities.WriteJSON(w, http.StatusCreated, st)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := utilities.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var p entity.Patch
	if err := utilities.DecodeJSON(r, &p); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, _ := auth.IdentityFrom(r.Context())
	st, err := h.svc.Update(r.Context(), id, u.ID, p)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := utilities.PathID(r, "id")
	if err != nil {
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, _ := auth.IdentityFrom(r.Context())
	if err := h.svc.Delete(r.Context(), id, u.ID); err != nil {
		h.WriteError(w, err)
		return
	}
	h.logger.Infow("store deleted", "store_id", id, "user_id", u.ID)
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
