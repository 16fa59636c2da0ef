package auth

import (
	"fmt"
	"sync"

	"github.com/pilab-dev/shadow-auth/services"
	"golang.org/x/crypto/bcrypt"
)

// BcryptPasswordHasher implements services.PasswordHasher using bcrypt.
type BcryptPasswordHasher struct {
	Cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewBcryptPasswordHasher creates a new BcryptPasswordHasher.
// Default cost is bcrypt.DefaultCost if cost <= 0.
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{Cost: cost}
}

// Hash generates a bcrypt hash for the given password.
func (h *BcryptPasswordHasher) Hash(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a bcrypt hashed password with its possible plaintext equivalent.
// Returns nil on success, or an error (e.g., bcrypt.ErrMismatchedHashAndPassword) on failure.
func (h *BcryptPasswordHasher) Verify(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// VerifyDummy burns the same work as Verify against a hash nobody knows the
// password for. Used when the account does not exist.
func (h *BcryptPasswordHasher) VerifyDummy(password string) {
	h.dummyOnce.Do(func() {
		// Never fails for a short fixed input.
		h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("shadow-auth-dummy-password"), h.Cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

var _ services.PasswordHasher = (*BcryptPasswordHasher)(nil)
