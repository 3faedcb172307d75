package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/user/entity"
)

// MinPasswordLength is counted in runes.
const MinPasswordLength = 6

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

// Repository is the persistent-record contract for identities.
type Repository interface {
	Create(ctx context.Context, u *entity.User) (int64, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// UserService owns identity registration and credential checks.
type UserService struct {
	repo   Repository
	hasher credential.PasswordHasher
	// dummy is compared against when the email is unknown so both failure
	// paths pay for one bcrypt comparison.
	dummy string
}

func NewUserService(r Repository, hasher credential.PasswordHasher) *UserService {
	if hasher == nil {
		hasher = credential.BcryptHasher{Cost: 12}
	}
	dummy, _ := hasher.Hash("not-a-real-password")
	return &UserService{repo: r, hasher: hasher, dummy: dummy}
}

// NormalizeEmail trims and lower-cases an email address. Emails are compared
// in this form everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && len(email) <= 254 && !strings.ContainsAny(email, " \t\r\n")
}

func validatePassword(pw string) error {
	if !utf8.ValidString(pw) {
		return fmt.Errorf("%w: password must be valid utf-8", ErrInvalidInput)
	}
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	return nil
}

// Register creates an identity with a hashed password.
func (s *UserService) Register(ctx context.Context, email, password, name string) (*entity.User, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.repo.Create(ctx, &entity.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// VerifyCredentials returns the identity for a matching email/password pair.
// Unknown email, wrong password and inactive identity all yield
// ErrInvalidCredentials.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.hasher.Verify(password, s.dummy)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) || !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns an identity by id or ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, id int64) (*entity.User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns an identity by (normalized) email or ErrUserNotFound.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// SetPassword replaces the password hash and returns the updated identity.
func (s *UserService) SetPassword(ctx context.Context, id int64, password string) (*entity.User, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Deactivate marks an identity as disabled; its tokens stop resolving.
func (s *UserService) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}
