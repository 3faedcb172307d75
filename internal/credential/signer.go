package credential

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType separates access, refresh and reset tokens signed with the same key.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
	TypeReset   TokenType = "reset"
)

// ErrInvalidToken matches every *TokenError via errors.Is.
var ErrInvalidToken = errors.New("invalid token")

type TokenErrorKind int

const (
	KindMalformed TokenErrorKind = iota + 1
	KindExpired
	KindBadSignature
	KindWrongType
)

func (k TokenErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindExpired:
		return "expired"
	case KindBadSignature:
		return "bad_signature"
	case KindWrongType:
		return "wrong_type"
	default:
		return "unknown"
	}
}

// TokenError reports why a token was rejected.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return "invalid token: " + e.Kind.String()
	}
	return fmt.Sprintf("invalid token: %s: %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

func (e *TokenError) Is(target error) bool { return target == ErrInvalidToken }

// Claims is the signed claim set. Subject carries the identity id.
type Claims struct {
	Type TokenType `json:"typ"`
	// PasswordFingerprint is set on reset tokens when single use is enabled.
	PasswordFingerprint string `json:"pwh,omitempty"`
	// Rotating marks refresh tokens backed by a stored session.
	Rotating bool `json:"rot,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject as an identity id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, &TokenError{Kind: KindMalformed, Err: fmt.Errorf("bad subject %q", c.Subject)}
	}
	return id, nil
}

// Signer issues and verifies HS256 tokens.
type Signer struct {
	secret []byte
	leeway time.Duration
	Now    func() time.Time
}

func NewSigner(secret []byte, leeway time.Duration) *Signer {
	return &Signer{secret: secret, leeway: leeway, Now: time.Now}
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Time returns the clock the signer stamps tokens with.
func (s *Signer) Time() time.Time { return s.now() }

// Sign stamps iat and exp (issue time + ttl) and returns the compact token.
func (s *Signer) Sign(c Claims, ttl time.Duration) (string, error) {
	now := s.now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &c)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry (with the configured leeway) and type.
func (s *Signer) Verify(token string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, &TokenError{Kind: KindMalformed, Err: errors.New("missing subject")}
	}
	if claims.Type != want {
		return nil, &TokenError{Kind: KindWrongType, Err: fmt.Errorf("got %q, want %q", claims.Type, want)}
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: KindExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &TokenError{Kind: KindBadSignature, Err: err}
	default:
		return &TokenError{Kind: KindMalformed, Err: err}
	}
}
