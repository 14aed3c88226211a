package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, identityID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("identity_id", identityID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishIdentityRegistered logs pns.identity.registered events.
func (p *StubPublisher) PublishIdentityRegistered(_ context.Context, event domain.IdentityRegisteredEvent) error {
	payload := map[string]any{
		"identity_id":   event.IdentityID,
		"email":         event.Email,
		"name":          event.Name,
		"role":          event.Role,
		"registered_at": event.RegisteredAt,
		"metadata":      event.Metadata,
	}
	p.logEvent("pns.identity.registered", event.IdentityID, event.RegisteredAt, payload)
	return nil
}

// PublishPasswordChanged logs pns.identity.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"identity_id":    event.IdentityID,
		"changed_at":     event.ChangedAt,
		"tokens_revoked": event.TokensRevoked,
		"metadata":       event.Metadata,
	}
	p.logEvent("pns.identity.password.changed", event.IdentityID, event.ChangedAt, payload)
	return nil
}

// PublishTokenRotated logs pns.token.rotated events.
func (p *StubPublisher) PublishTokenRotated(_ context.Context, event domain.TokenRotatedEvent) error {
	payload := map[string]any{
		"identity_id":  event.IdentityID,
		"old_token_id": event.OldTokenID,
		"new_token_id": event.NewTokenID,
		"rotated_at":   event.RotatedAt,
		"ip_address":   event.IPAddress,
		"metadata":     event.Metadata,
	}
	p.logEvent("pns.token.rotated", event.IdentityID, event.RotatedAt, payload)
	return nil
}

// PublishSessionRevoked logs pns.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"identity_id":    event.IdentityID,
		"revoked_at":     event.RevokedAt,
		"reason":         event.Reason,
		"tokens_revoked": event.TokensRevoked,
		"ip_address":     event.IPAddress,
		"metadata":       event.Metadata,
	}
	p.logEvent("pns.session.revoked", event.IdentityID, event.RevokedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
