package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a confirmation token so the raw value is never used as a
// store key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
