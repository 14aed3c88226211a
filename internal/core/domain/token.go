package domain

import "time"

// RefreshToken represents a persisted refresh token (stored as a hash).
// Revocation is one-way: RevokedAt is only ever set, never cleared.
type RefreshToken struct {
	ID         string
	IdentityID string
	TokenHash  string
	IP         *string
	UserAgent  *string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// IsExpired reports whether the token has elapsed its validity window.
// A token presented exactly at ExpiresAt is already expired.
func (t RefreshToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsRevoked reports whether the token has been explicitly revoked.
func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive returns true when the token can still be presented for rotation.
func (t RefreshToken) IsActive(at time.Time) bool {
	if t.IsRevoked() {
		return false
	}
	return !t.IsExpired(at)
}

// Revoke marks the token as revoked.
// Returns true if the token transitioned to the revoked state.
func (t *RefreshToken) Revoke(at time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	timeCopy := at
	t.RevokedAt = &timeCopy
	return true
}
