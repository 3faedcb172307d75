package credential

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(pw, digest string) bool
}

// BcryptHasher hashes a SHA-256 pre-digest of the password with bcrypt.
// The pre-digest keeps inputs of any length or content inside bcrypt's
// 72 byte, NUL-free window.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword(prehash(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify never fails loudly: a malformed digest simply does not match.
func (b BcryptHasher) Verify(pw, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), prehash(pw)) == nil
}

func prehash(pw string) []byte {
	sum := sha256.Sum256([]byte(pw))
	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(sum)))
	base64.RawStdEncoding.Encode(out, sum[:])
	return out
}

// Fingerprint returns a short stable digest of a password hash, used to bind
// reset tokens to the password they were issued against.
func Fingerprint(digest string) string {
	sum := sha256.Sum256([]byte(digest))
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}
