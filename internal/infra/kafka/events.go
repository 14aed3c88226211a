package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/port"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID    string           `json:"event_id"`
	EventType  string           `json:"event_type"`
	IdentityID string           `json:"identity_id,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Version    string           `json:"version"`
	Payload    any              `json:"payload"`
	Metadata   envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, identityID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:    id,
		EventType:  eventType,
		IdentityID: identityID,
		Timestamp:  ts.UTC(),
		Version:    schemaVersion,
		Payload:    payload,
		Metadata:   metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishIdentityRegistered publishes pns.identity.registered events.
func (p *EventPublisher) PublishIdentityRegistered(ctx context.Context, event domain.IdentityRegisteredEvent) error {
	payload := struct {
		IdentityID   string         `json:"identity_id"`
		Email        string         `json:"email"`
		Name         string         `json:"name"`
		Role         string         `json:"role"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		IdentityID:   event.IdentityID,
		Email:        event.Email,
		Name:         event.Name,
		Role:         string(event.Role),
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "pns.identity.registered", event.IdentityID, event.RegisteredAt, payload)
}

// PublishPasswordChanged publishes pns.identity.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		IdentityID    string         `json:"identity_id"`
		ChangedAt     time.Time      `json:"changed_at"`
		TokensRevoked int            `json:"tokens_revoked"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		IdentityID:    event.IdentityID,
		ChangedAt:     event.ChangedAt.UTC(),
		TokensRevoked: event.TokensRevoked,
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "pns.identity.password.changed", event.IdentityID, event.ChangedAt, payload)
}

// PublishTokenRotated publishes pns.token.rotated events.
func (p *EventPublisher) PublishTokenRotated(ctx context.Context, event domain.TokenRotatedEvent) error {
	payload := struct {
		IdentityID string         `json:"identity_id"`
		OldTokenID string         `json:"old_token_id"`
		NewTokenID string         `json:"new_token_id"`
		RotatedAt  time.Time      `json:"rotated_at"`
		IPAddress  *string        `json:"ip_address,omitempty"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		IdentityID: event.IdentityID,
		OldTokenID: event.OldTokenID,
		NewTokenID: event.NewTokenID,
		RotatedAt:  event.RotatedAt.UTC(),
		IPAddress:  event.IPAddress,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "pns.token.rotated", event.IdentityID, event.RotatedAt, payload)
}

// PublishSessionRevoked publishes pns.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		IdentityID    string         `json:"identity_id"`
		RevokedAt     time.Time      `json:"revoked_at"`
		Reason        string         `json:"reason"`
		TokensRevoked int            `json:"tokens_revoked"`
		IPAddress     *string        `json:"ip_address,omitempty"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		IdentityID:    event.IdentityID,
		RevokedAt:     event.RevokedAt.UTC(),
		Reason:        event.Reason,
		TokensRevoked: event.TokensRevoked,
		IPAddress:     event.IPAddress,
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "pns.session.revoked", event.IdentityID, event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
