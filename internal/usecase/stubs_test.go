package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/security"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/repository"
)

type stubIdentityRepository struct {
	mu         sync.Mutex
	identities map[string]domain.Identity
}

func newStubIdentityRepository() *stubIdentityRepository {
	return &stubIdentityRepository{identities: make(map[string]domain.Identity)}
}

func (r *stubIdentityRepository) Create(_ context.Context, identity domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[identity.ID] = identity
	return nil
}

func (r *stubIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if identity, ok := r.identities[id]; ok {
		copy := identity
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubIdentityRepository) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, identity := range r.identities {
		if identity.Email == email {
			copy := identity
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubIdentityRepository) List(_ context.Context) ([]domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Identity, 0, len(r.identities))
	for _, identity := range r.identities {
		out = append(out, identity)
	}
	return out, nil
}

func (r *stubIdentityRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[id]
	if !ok {
		return repository.ErrNotFound
	}
	identity.LastLogin = &at
	r.identities[id] = identity
	return nil
}

func (r *stubIdentityRepository) UpdatePassword(_ context.Context, id string, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[id]
	if !ok {
		return repository.ErrNotFound
	}
	identity.PasswordHash = passwordHash
	identity.UpdatedAt = changedAt
	r.identities[id] = identity
	return nil
}

func (r *stubIdentityRepository) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[id]
	if !ok {
		return repository.ErrNotFound
	}
	identity.IsActive = active
	r.identities[id] = identity
	return nil
}

type stubTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshToken
}

func newStubTokenRepository() *stubTokenRepository {
	return &stubTokenRepository{tokens: make(map[string]domain.RefreshToken)}
}

func (r *stubTokenRepository) Create(_ context.Context, token domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.ID] = token
	return nil
}

func (r *stubTokenRepository) GetByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.TokenHash == hash {
			copy := token
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubTokenRepository) Revoke(_ context.Context, tokenID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenID]
	if !ok || token.RevokedAt != nil {
		return false, nil
	}
	token.RevokedAt = &at
	r.tokens[tokenID] = token
	return true, nil
}

func (r *stubTokenRepository) RevokeAllForIdentity(_ context.Context, identityID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, token := range r.tokens {
		if token.IdentityID != identityID || token.RevokedAt != nil || !token.ExpiresAt.After(at) {
			continue
		}
		token.RevokedAt = &at
		r.tokens[id] = token
		count++
	}
	return count, nil
}

func (r *stubTokenRepository) PurgeExpiredOrRevoked(_ context.Context, reference time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, token := range r.tokens {
		if token.RevokedAt != nil || !token.ExpiresAt.After(reference) {
			delete(r.tokens, id)
			count++
		}
	}
	return count, nil
}

func (r *stubTokenRepository) get(tokenID string) (domain.RefreshToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenID]
	return token, ok
}

func (r *stubTokenRepository) activeCountFor(identityID string, at time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, token := range r.tokens {
		if token.IdentityID == identityID && token.IsActive(at) {
			count++
		}
	}
	return count
}

func seedIdentity(t *testing.T, repo *stubIdentityRepository, email, password string, role domain.Role, active bool) domain.Identity {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	now := time.Now().UTC()
	identity := domain.Identity{
		ID:           uuid.NewString(),
		Email:        domain.NormalizeEmail(email),
		Name:         "Test Person",
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := repo.Create(context.Background(), identity); err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	return identity
}
