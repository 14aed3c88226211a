package port

import (
	"context"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
)

// EventPublisher publishes auth lifecycle events to the message bus.
type EventPublisher interface {
	PublishIdentityRegistered(ctx context.Context, event domain.IdentityRegisteredEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishTokenRotated(ctx context.Context, event domain.TokenRotatedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
}
