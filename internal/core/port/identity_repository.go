package port

import (
	"context"
	"time"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
)

// IdentityRepository exposes persistence behavior for identities.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	List(ctx context.Context) ([]domain.Identity, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
}
