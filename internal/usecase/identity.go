package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/port"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/repository"
)

// IdentityService covers administrative identity management: listing,
// lookup, and the deactivate/reactivate toggle.
type IdentityService struct {
	identities port.IdentityRepository
	sessions   *SessionService
	logger     *zap.Logger
}

// NewIdentityService constructs an identity service.
func NewIdentityService(identities port.IdentityRepository, sessions *SessionService, logger *zap.Logger) *IdentityService {
	return &IdentityService{identities: identities, sessions: sessions, logger: logger}
}

// List returns every identity, hashes stripped.
func (s *IdentityService) List(ctx context.Context) ([]domain.Identity, error) {
	identities, err := s.identities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	sanitized := make([]domain.Identity, 0, len(identities))
	for _, identity := range identities {
		sanitized = append(sanitized, identity.Sanitized())
	}
	return sanitized, nil
}

// Get returns a single identity by id, hash stripped.
func (s *IdentityService) Get(ctx context.Context, id string) (*domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	sanitized := identity.Sanitized()
	return &sanitized, nil
}

// Deactivate soft-disables the identity and revokes its sessions. Records
// are never physically deleted.
func (s *IdentityService) Deactivate(ctx context.Context, id string) error {
	if err := s.identities.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("deactivate identity: %w", err)
	}

	revoked, err := s.sessions.RevokeAllSessions(ctx, id, "deactivated")
	if err != nil {
		return err
	}

	s.logger.Info("identity deactivated",
		zap.String("identity_id", id),
		zap.Int("tokens_revoked", revoked),
	)
	return nil
}

// Reactivate re-enables a deactivated identity. Refresh tokens that were
// still valid at deactivation become usable again.
func (s *IdentityService) Reactivate(ctx context.Context, id string) error {
	if err := s.identities.SetActive(ctx, id, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("reactivate identity: %w", err)
	}

	s.logger.Info("identity reactivated", zap.String("identity_id", id))
	return nil
}
