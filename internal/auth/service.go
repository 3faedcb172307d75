package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

var (
	// ErrInvalidToken is returned by Refresh.
	ErrInvalidToken = credential.ErrInvalidToken
	// ErrUnauthorized is returned by Resolve.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRefreshReuse marks a consumed refresh token presented again.
	ErrRefreshReuse = errors.New("refresh token reused")
)

// SessionRepository persists refresh token ids for rotation.
type SessionRepository interface {
	Save(ctx context.Context, s RefreshSession) error
	Consume(ctx context.Context, jti string) (bool, error)
	DeleteByUser(ctx context.Context, userID int64) error
}

type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Rotation makes every refresh token single use.
	Rotation bool
}

// Service issues, refreshes and resolves bearer tokens.
type Service struct {
	users    *user.UserService
	signer   *credential.Signer
	sessions SessionRepository
	opts     Options
}

func NewService(users *user.UserService, signer *credential.Signer, sessions SessionRepository, opts Options) *Service {
	return &Service{users: users, signer: signer, sessions: sessions, opts: opts}
}

// Authenticate checks credentials and issues a fresh pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Pair, error) {
	u, err := s.users.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u.ID)
}

// Refresh trades a refresh token for a new pair. Without rotation the old
// token stays valid until it expires.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Pair, error) {
	claims, err := s.signer.Verify(refreshToken, credential.TypeRefresh)
	if err != nil {
		return nil, err
	}
	uid, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	// tokens issued before rotation was enabled have no session to consume
	// and stay reusable until they expire
	if s.opts.Rotation && claims.Rotating {
		ok, err := s.sessions.Consume(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("consume refresh session: %w", err)
		}
		if !ok {
			// a signed, unexpired token with no session was already used
			if err := s.sessions.DeleteByUser(ctx, uid); err != nil {
				return nil, fmt.Errorf("revoke sessions: %w", err)
			}
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrRefreshReuse)
		}
	}

	u, err := s.users.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: subject not found", ErrInvalidToken)
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: subject inactive", ErrInvalidToken)
	}
	return s.issue(ctx, u.ID)
}

// Resolve maps an access token to its identity. It is the gate for every
// protected operation.
func (s *Service) Resolve(ctx context.Context, accessToken string) (*entity.User, error) {
	claims, err := s.signer.Verify(accessToken, credential.TypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	uid, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	u, err := s.users.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: subject not found", ErrUnauthorized)
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: subject inactive", ErrUnauthorized)
	}
	return u, nil
}

// CloseAccount deactivates the identity and drops its refresh sessions.
// Outstanding tokens stop resolving because Resolve and Refresh reject
// inactive identities.
func (s *Service) CloseAccount(ctx context.Context, uid int64) error {
	if err := s.users.Deactivate(ctx, uid); err != nil {
		return err
	}
	if err := s.sessions.DeleteByUser(ctx, uid); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

func (s *Service) issue(ctx context.Context, uid int64) (*Pair, error) {
	sub := strconv.FormatInt(uid, 10)
	access, err := s.signer.Sign(credential.Claims{
		Type:             credential.TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	}, s.opts.AccessTTL)
	if err != nil {
		return nil, err
	}

	jti := utilities.NewKSUID()
	refresh, err := s.signer.Sign(credential.Claims{
		Type:             credential.TypeRefresh,
		Rotating:         s.opts.Rotation,
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ID: jti},
	}, s.opts.RefreshTTL)
	if err != nil {
		return nil, err
	}

	if s.opts.Rotation {
		rs := RefreshSession{
			ID:        jti,
			UserID:    uid,
			ExpiresAt: s.signer.Time().Add(s.opts.RefreshTTL),
		}
		if err := s.sessions.Save(ctx, rs); err != nil {
			return nil, fmt.Errorf("save refresh session: %w", err)
		}
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.opts.AccessTTL / time.Second),
	}, nil
}
