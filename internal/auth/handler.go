package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

// Handler exposes register / login / refresh / me.
type Handler struct {
	svc    *Service
	users  *user.UserService
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, users *user.UserService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, users: users, logger: logger}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type RegisterResponse struct {
	Pair
	User *entity.User `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, err := h.users.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("register", "failure").Inc()
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			utilities.WriteError(w, http.StatusConflict, "email already taken")
		case errors.Is(err, user.ErrInvalidInput):
			utilities.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Errorw("register failed", "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, "register failed")
		}
		return
	}
	pair, err := h.svc.issue(r.Context(), u.ID)
	if err != nil {
		h.logger.Errorw("issue tokens after register failed", "user_id", u.ID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "register failed")
		return
	}
	metrics.AuthEvents.WithLabelValues("register", "success").Inc()
	h.logger.Infow("user registered", "user_id", u.ID)
	utilities.WriteJSON(w, http.StatusCreated, RegisterResponse{Pair: *pair, User: u})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	pair, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("login", "failure").Inc()
		if errors.Is(err, user.ErrInvalidCredentials) {
			utilities.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Errorw("login failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}
	metrics.AuthEvents.WithLabelValues("login", "success").Inc()
	utilities.WriteJSON(w, http.StatusOK, pair)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := utilities.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("refresh", "failure").Inc()
		if errors.Is(err, ErrInvalidToken) {
			if errors.Is(err, ErrRefreshReuse) {
				h.logger.Warnw("refresh token reuse detected", "err", err)
			} else {
				h.logger.Debugw("refresh rejected", "err", err)
			}
			utilities.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		h.logger.Errorw("refresh failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	metrics.AuthEvents.WithLabelValues("refresh", "success").Inc()
	utilities.WriteJSON(w, http.StatusOK, pair)
}

// Me returns the identity placed in the context by RequireBearer.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := IdentityFrom(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, u)
}

// CloseMe deactivates the caller's own account.
func (h *Handler) CloseMe(w http.ResponseWriter, r *http.Request) {
	u, ok := IdentityFrom(r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.CloseAccount(r.Context(), u.ID); err != nil {
		h.logger.Errorw("close account failed", "user_id", u.ID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "close account failed")
		return
	}
	metrics.AuthEvents.WithLabelValues("close", "success").Inc()
	h.logger.Infow("account closed", "user_id", u.ID)
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
