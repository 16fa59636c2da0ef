package auth_test

import (
	"crypto/rand"
	"testing"

	"github.com/pilab-dev/shadow-auth/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	hasher := auth.NewBcryptPasswordHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("password")
	if err != nil {
		t.Errorf("Hash failed: %v", err)
	}
	if err := hasher.Verify(hash, "password"); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if err := hasher.Verify(hash, "Password"); err == nil {
		t.Errorf("Verify should have failed for a different password")
	}

	t.Run("TestTooLongPassword", func(t *testing.T) {
		tooLongPass := make([]byte, 73)
		_, _ = rand.Read(tooLongPass)

		_, err := hasher.Hash(string(tooLongPass))
		if err == nil {
			t.Errorf("Hash should have failed")
		}
	})

	t.Run("TestVerifyDummy", func(t *testing.T) {
		// Must not panic and must be callable repeatedly.
		hasher.VerifyDummy("anything")
		hasher.VerifyDummy("")
	})
}

func TestNewBcryptPasswordHasher_DefaultCost(t *testing.T) {
	if got := auth.NewBcryptPasswordHasher(0).Cost; got != bcrypt.DefaultCost {
		t.Errorf("expected default cost %d, got %d", bcrypt.DefaultCost, got)
	}
}
