package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying u.
func WithIdentity(ctx context.Context, u *entity.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// IdentityFrom returns the authenticated identity, if any.
func IdentityFrom(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*entity.User)
	return u, ok && u != nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < len("bearer ") || !strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[len("bearer "):])
	return tok, tok != ""
}

// RequireBearer rejects requests without a resolvable access token.
func RequireBearer(svc *Service, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := BearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				utilities.WriteError(w, http.StatusUnauthorized, "missing token")
				return
			}
			u, err := svc.Resolve(r.Context(), tok)
			if err != nil {
				if errors.Is(err, ErrUnauthorized) {
					logger.Debugw("bearer rejected", "err", err)
					w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
					utilities.WriteError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				logger.Errorw("resolve bearer failed", "err", err)
				utilities.WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), u)))
		})
	}
}
