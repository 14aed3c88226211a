package domain

import "time"

// IdentityRegisteredEvent represents the payload for pns.identity.registered messages.
type IdentityRegisteredEvent struct {
	EventID      string
	IdentityID   string
	Email        string
	Name         string
	Role         Role
	RegisteredAt time.Time
	Metadata     map[string]any
}

// PasswordChangedEvent represents the payload for pns.identity.password.changed messages.
type PasswordChangedEvent struct {
	EventID       string
	IdentityID    string
	ChangedAt     time.Time
	TokensRevoked int
	Metadata      map[string]any
}

// TokenRotatedEvent represents the payload for pns.token.rotated messages.
type TokenRotatedEvent struct {
	EventID    string
	IdentityID string
	OldTokenID string
	NewTokenID string
	RotatedAt  time.Time
	IPAddress  *string
	Metadata   map[string]any
}

// SessionRevokedEvent represents the payload for pns.session.revoked messages.
// Emitted on logout and on mass revocations.
type SessionRevokedEvent struct {
	EventID       string
	IdentityID    string
	RevokedAt     time.Time
	Reason        string
	TokensRevoked int
	IPAddress     *string
	Metadata      map[string]any
}
