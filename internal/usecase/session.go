package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/port"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/security"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided email or password are incorrect
	// or the account is deactivated. The cases are intentionally indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefreshToken indicates the presented refresh token is unknown,
	// tampered, or already rotated/revoked.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenExpired indicates a known refresh token past its expiry.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrAccountInactive indicates a valid token whose owner is deactivated.
	ErrAccountInactive = errors.New("account is not active")
	// ErrCurrentPasswordIncorrect indicates the current password check failed
	// during a password change.
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
	// ErrInvalidAccessToken indicates the access token is malformed or its
	// signature does not verify.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrIdentityNotFound indicates an identity lookup by id matched nothing.
	ErrIdentityNotFound = errors.New("identity not found")
)

// SessionService coordinates the session lifecycle: login, refresh token
// rotation, logout, and password changes.
type SessionService struct {
	identities port.IdentityRepository
	tokens     port.TokenRepository
	verifier   *CredentialVerifier
	issuer     *TokenIssuer
	signer     *security.TokenSigner
	validator  *security.PasswordValidator
	events     port.EventPublisher
	logger     *zap.Logger
}

// NewSessionService constructs a session service.
func NewSessionService(
	identities port.IdentityRepository,
	tokens port.TokenRepository,
	verifier *CredentialVerifier,
	issuer *TokenIssuer,
	signer *security.TokenSigner,
	validator *security.PasswordValidator,
	events port.EventPublisher,
	logger *zap.Logger,
) *SessionService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	return &SessionService{
		identities: identities,
		tokens:     tokens,
		verifier:   verifier,
		issuer:     issuer,
		signer:     signer,
		validator:  validator,
		events:     events,
		logger:     logger,
	}
}

// LoginInput carries the credentials and session options for Login.
type LoginInput struct {
	Email    string
	Password string
	Extended bool
	Meta     ClientMeta
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	Identity domain.Identity
	Pair     TokenPair
}

// Login verifies credentials, stamps the last-login time, and issues a
// fresh token pair.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	identity, err := s.verifier.Verify(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.identities.UpdateLastLogin(ctx, identity.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	identity.LastLogin = &now

	pair, err := s.issuer.Issue(ctx, *identity, input.Extended, input.Meta)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Identity: *identity, Pair: *pair}, nil
}

// Refresh rotates a refresh token. The presented token is checked against
// the store first, then cryptographically, then revoked with a
// compare-and-swap so a token presented twice concurrently yields exactly
// one new pair. The loser of the race gets ErrInvalidRefreshToken.
func (s *SessionService) Refresh(ctx context.Context, token string, meta ClientMeta) (*LoginResult, error) {
	if token == "" {
		return nil, ErrInvalidRefreshToken
	}

	record, err := s.tokens.GetByHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	now := time.Now().UTC()

	if record.IsExpired(now) {
		if _, err := s.tokens.Revoke(ctx, record.ID, now); err != nil {
			return nil, fmt.Errorf("revoke expired token: %w", err)
		}
		return nil, ErrRefreshTokenExpired
	}

	claims, err := s.signer.ParseRefreshToken(token)
	if err != nil || claims.Subject != record.IdentityID {
		if _, revokeErr := s.tokens.Revoke(ctx, record.ID, now); revokeErr != nil {
			return nil, fmt.Errorf("revoke tampered token: %w", revokeErr)
		}
		return nil, ErrInvalidRefreshToken
	}

	owner, err := s.identities.GetByID(ctx, record.IdentityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup token owner: %w", err)
	}

	// A deactivated owner does not revoke the record. The token stays usable
	// if the account is reactivated before it expires.
	if !owner.IsActive {
		return nil, ErrAccountInactive
	}

	transitioned, err := s.tokens.Revoke(ctx, record.ID, now)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !transitioned {
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.issuer.Issue(ctx, *owner, false, meta)
	if err != nil {
		return nil, err
	}

	s.publishTokenRotated(ctx, owner.ID, record.ID, pair.RefreshTokenID, now, meta)

	sanitized := owner.Sanitized()
	return &LoginResult{Identity: sanitized, Pair: *pair}, nil
}

// Logout revokes the presented refresh token. Unknown and already revoked
// tokens succeed silently, so repeated logouts are idempotent.
func (s *SessionService) Logout(ctx context.Context, token string, meta ClientMeta) error {
	if token == "" {
		return nil
	}

	record, err := s.tokens.GetByHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}

	now := time.Now().UTC()
	transitioned, err := s.tokens.Revoke(ctx, record.ID, now)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if transitioned {
		s.publishSessionRevoked(ctx, record.IdentityID, "logout", 1, now, meta)
	}
	return nil
}

// ChangePassword verifies the current password, applies the policy to the
// new one, rewrites the hash, and revokes every outstanding refresh token
// for the identity. Returns how many tokens were revoked.
func (s *SessionService) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) (int, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrIdentityNotFound
		}
		return 0, fmt.Errorf("lookup identity: %w", err)
	}

	ok, err := security.VerifyPassword(currentPassword, identity.PasswordHash)
	if err != nil {
		return 0, fmt.Errorf("verify current password: %w", err)
	}
	if !ok {
		return 0, ErrCurrentPasswordIncorrect
	}

	policy := security.NewPasswordValidator(
		append([]security.PasswordRule{security.RequireDifferentFrom(currentPassword)}, s.validator.Rules()...)...,
	)
	if err := policy.Validate(newPassword); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	if err := s.identities.UpdatePassword(ctx, identity.ID, hash, now); err != nil {
		return 0, fmt.Errorf("update password: %w", err)
	}

	revoked, err := s.tokens.RevokeAllForIdentity(ctx, identity.ID, now)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}

	if s.events != nil {
		event := domain.PasswordChangedEvent{
			EventID:       uuid.NewString(),
			IdentityID:    identity.ID,
			ChangedAt:     now,
			TokensRevoked: revoked,
		}
		if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
			s.logger.Warn("publish password changed event failed", zap.Error(err))
		}
	}

	return revoked, nil
}

// CurrentIdentity resolves the identity behind a verified access token.
func (s *SessionService) CurrentIdentity(ctx context.Context, accessToken string) (*domain.Identity, error) {
	claims, err := s.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	return s.CurrentIdentityByID(ctx, claims.Subject)
}

// CurrentIdentityByID resolves an already-authenticated identity by id.
func (s *SessionService) CurrentIdentityByID(ctx context.Context, identityID string) (*domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if !identity.IsActive {
		return nil, ErrAccountInactive
	}

	sanitized := identity.Sanitized()
	return &sanitized, nil
}

// VerifyAccessToken checks signature and expiry of an access token without
// touching the store. Access checks are stateless.
func (s *SessionService) VerifyAccessToken(accessToken string) (*security.AccessTokenClaims, error) {
	claims, err := s.signer.ParseAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// RevokeAllSessions revokes every refresh token for the identity. Used by
// administrative deactivation.
func (s *SessionService) RevokeAllSessions(ctx context.Context, identityID, reason string) (int, error) {
	now := time.Now().UTC()
	revoked, err := s.tokens.RevokeAllForIdentity(ctx, identityID, now)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	if revoked > 0 {
		s.publishSessionRevoked(ctx, identityID, reason, revoked, now, ClientMeta{})
	}
	return revoked, nil
}

// Cleanup deletes refresh token records that are revoked or past expiry.
func (s *SessionService) Cleanup(ctx context.Context) (int, error) {
	purged, err := s.tokens.PurgeExpiredOrRevoked(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return purged, nil
}

func (s *SessionService) publishTokenRotated(ctx context.Context, identityID, oldTokenID, newTokenID string, at time.Time, meta ClientMeta) {
	if s.events == nil {
		return
	}
	event := domain.TokenRotatedEvent{
		EventID:    uuid.NewString(),
		IdentityID: identityID,
		OldTokenID: oldTokenID,
		NewTokenID: newTokenID,
		RotatedAt:  at,
		IPAddress:  meta.IP,
	}
	if err := s.events.PublishTokenRotated(ctx, event); err != nil {
		s.logger.Warn("publish token rotated event failed", zap.Error(err))
	}
}

func (s *SessionService) publishSessionRevoked(ctx context.Context, identityID, reason string, count int, at time.Time, meta ClientMeta) {
	if s.events == nil {
		return
	}
	event := domain.SessionRevokedEvent{
		EventID:       uuid.NewString(),
		IdentityID:    identityID,
		RevokedAt:     at,
		Reason:        reason,
		TokensRevoked: count,
		IPAddress:     meta.IP,
	}
	if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("publish session revoked event failed", zap.Error(err))
	}
}
