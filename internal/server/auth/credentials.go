// Package auth implements credential primitives for the server: slow one-way
// hashing for human passwords, a fast digest for high-entropy session
// secrets, and the signed session token format.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is fixed process-wide. Account and link passwords share it.
const bcryptCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer passwords must be rejected
// as caller input before hashing; past this length GenerateFromPassword fails.
const MaxPasswordBytes = 72

// HashPassword returns a salted bcrypt hash of the plaintext. Used for both
// account passwords and link passwords; the stored value is never
// round-trippable.
func HashPassword(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// HashSecret returns a fast deterministic digest of a session secret.
// The secret is already high-entropy random bytes, so a keyless SHA-256 is
// sufficient; storing the digest keeps the bearer token's secret out of the
// database.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecretDigestEqual compares two digests in constant time.
func SecretDigestEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
