package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the hex encoded SHA-256 digest of a token string.
// Refresh tokens are persisted as digests so a database leak does not
// expose usable credentials.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
