package recovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user/entity"
)

var (
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrIdentityNotFound      = errors.New("identity not found")
)

type Options struct {
	TTL time.Duration
	// SingleUse binds each token to the password hash it was issued against.
	SingleUse bool
	// SendTimeout bounds a detached mail dispatch.
	SendTimeout time.Duration
}

// Service runs the forgot / reset password flow.
type Service struct {
	users  *user.UserService
	signer *credential.Signer
	mailer mail.Sender
	logger *zap.SugaredLogger
	opts   Options

	wg sync.WaitGroup
}

func NewService(users *user.UserService, signer *credential.Signer, mailer mail.Sender, logger *zap.SugaredLogger, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	return &Service{users: users, signer: signer, mailer: mailer, logger: logger, opts: opts}
}

// Initiate sends a reset token to email if an identity owns it. The caller
// learns nothing either way; failures are logged.
func (s *Service) Initiate(ctx context.Context, email string) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			s.logger.Errorw("lookup for password reset failed", "err", err)
		}
		return
	}

	claims := credential.Claims{
		Type:             credential.TypeReset,
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(u.ID, 10)},
	}
	if s.opts.SingleUse {
		claims.PasswordFingerprint = credential.Fingerprint(u.PasswordHash)
	}
	token, err := s.signer.Sign(claims, s.opts.TTL)
	if err != nil {
		s.logger.Errorw("sign reset token failed", "user_id", u.ID, "err", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.SendTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.mailer.Send(sendCtx, u.Email, token); err != nil {
			metrics.MailDispatchTotal.WithLabelValues("failure").Inc()
			s.logger.Warnw("send reset mail failed", "user_id", u.ID, "err", err)
			return
		}
		metrics.MailDispatchTotal.WithLabelValues("success").Inc()
		s.logger.Infow("reset mail sent", "user_id", u.ID)
	}()
}

// Wait blocks until every dispatch started by Initiate has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Complete verifies a reset token and replaces the identity's password.
func (s *Service) Complete(ctx context.Context, token, newPassword string) (*entity.User, error) {
	claims, err := s.signer.Verify(token, credential.TypeReset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}
	uid, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, err)
	}
	u, err := s.users.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	if s.opts.SingleUse && claims.PasswordFingerprint != credential.Fingerprint(u.PasswordHash) {
		return nil, fmt.Errorf("%w: token already used", ErrInvalidOrExpiredToken)
	}

	updated, err := s.users.SetPassword(ctx, u.ID, newPassword)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return updated, nil
}
