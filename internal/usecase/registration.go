package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/port"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/logger"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/security"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/repository"
)

var (
	// ErrEmailTaken indicates an identity with the same normalized email exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
	// ErrInvalidRole indicates the requested role is not one of the defined constants.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidRegistration indicates a malformed email or missing name.
	ErrInvalidRegistration = errors.New("invalid registration input")
)

// RegistrationService handles new account onboarding.
type RegistrationService struct {
	identities        port.IdentityRepository
	passwordValidator *security.PasswordValidator
	events            port.EventPublisher
	logger            *zap.Logger
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(identities port.IdentityRepository, validator *security.PasswordValidator, events port.EventPublisher, logger *zap.Logger) *RegistrationService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	return &RegistrationService{
		identities:        identities,
		passwordValidator: validator,
		events:            events,
		logger:            logger,
	}
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// Register creates a new active identity. Email uniqueness is checked over
// the normalized form; the database unique constraint backstops races.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*domain.Identity, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidRegistration)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRegistration)
	}

	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRole, err)
	}

	// Uniqueness is checked before the password policy so a taken email
	// surfaces as a conflict no matter what password was submitted.
	if _, err := s.identities.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	if err := s.passwordValidator.Validate(input.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	identity := domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}

	if s.events != nil {
		event := domain.IdentityRegisteredEvent{
			EventID:      uuid.NewString(),
			IdentityID:   identity.ID,
			Email:        identity.Email,
			Name:         identity.Name,
			Role:         identity.Role,
			RegisteredAt: now,
		}
		if err := s.events.PublishIdentityRegistered(ctx, event); err != nil {
			s.logger.Warn("publish identity registered event failed", zap.Error(err))
		}
	}

	s.logger.Info("identity registered",
		zap.String("identity_id", identity.ID),
		zap.String("email", logger.MaskEmail(identity.Email)),
		zap.String("role", identity.Role.String()),
	)

	sanitized := identity.Sanitized()
	return &sanitized, nil
}
