package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost used by the previous system.
const DefaultBcryptCost = 10

// Verifier checks submitted passwords against stored credentials and upgrades
// legacy plaintext credentials to bcrypt.
type Verifier struct {
	cost int
}

// NewVerifier returns a Verifier hashing with cost; out-of-range costs fall back to DefaultBcryptCost.
func NewVerifier(cost int) *Verifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Verifier{cost: cost}
}

// Hash hashes a plaintext password.
func (v *Verifier) Hash(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether submitted matches stored. When stored is a legacy
// plaintext credential and matches, upgraded holds a fresh bcrypt hash the
// caller must persist; otherwise upgraded is empty. Internal failures count
// as a mismatch.
func (v *Verifier) Verify(submitted, stored string) (valid bool, upgraded string) {
	if submitted == "" || stored == "" {
		return false, ""
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(submitted)) == nil {
		return true, ""
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) != 1 {
		return false, ""
	}
	hash, err := v.Hash(submitted)
	if err != nil {
		return false, ""
	}
	return true, hash
}

// IsHash reports whether stored is already in bcrypt form.
func IsHash(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}
