package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/port"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/security"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/repository"
)

// CredentialVerifier checks email and password pairs against stored
// identities. Unknown email, wrong password, and deactivated account all
// surface as ErrInvalidCredentials so callers cannot enumerate accounts.
type CredentialVerifier struct {
	identities port.IdentityRepository
}

// NewCredentialVerifier constructs a credential verifier.
func NewCredentialVerifier(identities port.IdentityRepository) *CredentialVerifier {
	return &CredentialVerifier{identities: identities}
}

// Verify locates an active identity by normalized email and compares the
// password against the stored Argon2 hash. The returned identity carries
// the password hash stripped.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*domain.Identity, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	identity, err := v.identities.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	if !identity.IsActive {
		return nil, ErrInvalidCredentials
	}

	ok, err := security.VerifyPassword(password, identity.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	sanitized := identity.Sanitized()
	return &sanitized, nil
}
