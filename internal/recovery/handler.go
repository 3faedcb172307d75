package recovery

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type ForgotRequest struct {
	Email string `json:"email"`
}

type ResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Forgot always answers 200 for a well-formed request.
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotRequest
	if err := utilities.DecodeJSON(r, &req); err != nil || req.Email == "" {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	h.svc.Initiate(r.Context(), req.Email)
	utilities.WriteJSON(w, http.StatusOK, messageResponse{Message: "if the email exists, a reset link has been sent"})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := utilities.DecodeJSON(r, &req); err != nil || req.Token == "" {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, err := h.svc.Complete(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("reset", "failure").Inc()
		switch {
		case errors.Is(err, ErrInvalidOrExpiredToken):
			h.logger.Debugw("reset token rejected", "err", err)
			utilities.WriteError(w, http.StatusBadRequest, "invalid or expired token")
		case errors.Is(err, ErrIdentityNotFound):
			utilities.WriteError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, user.ErrInvalidInput):
			utilities.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Errorw("password reset failed", "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, "password reset failed")
		}
		return
	}
	metrics.AuthEvents.WithLabelValues("reset", "success").Inc()
	h.logger.Infow("password reset", "user_id", u.ID)
	utilities.WriteJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}
