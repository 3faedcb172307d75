package credential

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func subject(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: sub}
}

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	inputs := []string{
		"pw123456",
		"пароль-с-юникодом",
		strings.Repeat("long", 40),
		"nul\x00inside",
		"",
	}
	for _, pw := range inputs {
		digest, err := h.Hash(pw)
		if err != nil {
			t.Fatalf("hash %q: %v", pw, err)
		}
		if !h.Verify(pw, digest) {
			t.Fatalf("expected %q to verify", pw)
		}
		if h.Verify(pw+"x", digest) {
			t.Fatalf("expected mismatch for altered %q", pw)
		}
	}
}

func TestBcryptHasher_HashesAreSalted(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatalf("expected distinct digests for the same password")
	}
}

func TestBcryptHasher_MalformedDigest(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	for _, digest := range []string{"", "not-a-hash", "$2a$04$short"} {
		if h.Verify("pw", digest) {
			t.Fatalf("expected malformed digest %q to fail", digest)
		}
	}
}

func newTestSigner(now *time.Time) *Signer {
	s := NewSigner([]byte("0123456789abcdef0123456789abcdef"), 0)
	s.Now = func() time.Time { return *now }
	return s
}

func TestSigner_ValidUntilTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(&now)

	tok, err := s.Sign(Claims{Type: TypeAccess, RegisteredClaims: subject("42")}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := s.Verify(tok, TypeAccess)
	if err != nil {
		t.Fatalf("verify fresh token: %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 42 {
		t.Fatalf("expected subject 42, got %d (%v)", id, err)
	}

	now = now.Add(2 * time.Minute)
	_, err = s.Verify(tok, TypeAccess)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
	var te *TokenError
	if !errors.As(err, &te) || te.Kind != KindExpired {
		t.Fatalf("expected expired kind, got %v", err)
	}
}

func TestSigner_LeewayTolerance(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSigner([]byte("0123456789abcdef0123456789abcdef"), 10*time.Second)
	s.Now = func() time.Time { return now }

	tok, _ := s.Sign(Claims{Type: TypeAccess, RegisteredClaims: subject("1")}, time.Minute)
	now = now.Add(time.Minute + 5*time.Second)
	if _, err := s.Verify(tok, TypeAccess); err != nil {
		t.Fatalf("expected token within leeway to verify: %v", err)
	}
	now = now.Add(30 * time.Second)
	if _, err := s.Verify(tok, TypeAccess); err == nil {
		t.Fatalf("expected token past leeway to fail")
	}
}

func TestSigner_ErrorKinds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(&now)
	other := NewSigner([]byte("another-secret-another-secret!!"), 0)
	other.Now = s.Now

	good, _ := s.Sign(Claims{Type: TypeRefresh, RegisteredClaims: subject("7")}, time.Hour)
	forged, _ := other.Sign(Claims{Type: TypeRefresh, RegisteredClaims: subject("7")}, time.Hour)
	noSubject, _ := s.Sign(Claims{Type: TypeRefresh}, time.Hour)

	cases := []struct {
		name  string
		token string
		want  TokenType
		kind  TokenErrorKind
	}{
		{"garbage", "not.a.jwt", TypeRefresh, KindMalformed},
		{"empty", "", TypeRefresh, KindMalformed},
		{"foreign key", forged, TypeRefresh, KindBadSignature},
		{"wrong type", good, TypeAccess, KindWrongType},
		{"no subject", noSubject, TypeRefresh, KindMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Verify(tc.token, tc.want)
			var te *TokenError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TokenError, got %v", err)
			}
			if te.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, te.Kind)
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected errors.Is ErrInvalidToken")
			}
		})
	}
}

func TestFingerprintChangesWithDigest(t *testing.T) {
	if Fingerprint("a") == Fingerprint("b") {
		t.Fatalf("expected distinct fingerprints")
	}
	if Fingerprint("a") != Fingerprint("a") {
		t.Fatalf("expected stable fingerprint")
	}
}
