package port

import (
	"context"
	"time"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
)

// TokenRepository manages refresh token records.
type TokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) error
	// GetByHash returns the record matching the hashed token string regardless
	// of its revocation state, or repository.ErrNotFound.
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// Revoke is a compare-and-swap on the revoked flag. It returns true when
	// this call performed the not-revoked to revoked transition, and false
	// when the record was already revoked or does not exist. Two concurrent
	// calls for the same record see exactly one true result.
	Revoke(ctx context.Context, tokenID string, at time.Time) (bool, error)
	// RevokeAllForIdentity revokes every currently valid record owned by the
	// identity and returns how many transitioned.
	RevokeAllForIdentity(ctx context.Context, identityID string, at time.Time) (int, error)
	// PurgeExpiredOrRevoked deletes records that are revoked or past expiry.
	PurgeExpiredOrRevoked(ctx context.Context, reference time.Time) (int, error)
}
