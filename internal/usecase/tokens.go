package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/port"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/config"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/security"
)

// ClientMeta carries request-level attribution persisted alongside refresh
// token records.
type ClientMeta struct {
	IP        *string
	UserAgent *string
}

// TokenPair is the result of a successful issuance: a short lived access
// token and a persisted, single-use refresh token.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresIn int64
	RefreshTokenID  string
	RefreshExpires  time.Time
}

// TokenIssuer mints access and refresh token pairs and records the refresh
// half in the store.
type TokenIssuer struct {
	cfg    config.JWTSettings
	signer *security.TokenSigner
	tokens port.TokenRepository
}

// NewTokenIssuer constructs a token issuer.
func NewTokenIssuer(cfg config.JWTSettings, signer *security.TokenSigner, tokens port.TokenRepository) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, signer: signer, tokens: tokens}
}

// Issue signs a fresh pair for the identity and persists the refresh record.
// The extended flag stretches the refresh lifetime for remember-me sessions.
func (i *TokenIssuer) Issue(ctx context.Context, identity domain.Identity, extended bool, meta ClientMeta) (*TokenPair, error) {
	now := time.Now().UTC()
	accessTTL := i.cfg.AccessTokenLifetime()
	refreshTTL := i.cfg.RefreshTokenLifetime(extended)

	accessToken, err := i.signer.SignAccessToken(identity.ID, identity.Email, string(identity.Role), now, accessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := i.signer.SignRefreshToken(identity.ID, now, refreshTTL)
	if err != nil {
		return nil, err
	}

	record := domain.RefreshToken{
		ID:         uuid.NewString(),
		IdentityID: identity.ID,
		TokenHash:  security.HashToken(refreshToken),
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		CreatedAt:  now,
		ExpiresAt:  now.Add(refreshTTL),
	}

	if err := i.tokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresIn: int64(accessTTL.Seconds()),
		RefreshTokenID:  record.ID,
		RefreshExpires:  record.ExpiresAt,
	}, nil
}
