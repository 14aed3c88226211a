package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/config"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/infra/security"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/repository"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/transport/http/middleware"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/usecase"
)

type memIdentityRepository struct {
	mu         sync.Mutex
	identities map[string]domain.Identity
}

func newMemIdentityRepository() *memIdentityRepository {
	return &memIdentityRepository{identities: make(map[string]domain.Identity)}
}

func (r *memIdentityRepository) Create(_ context.Context, identity domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[identity.ID] = identity
	return nil
}

func (r *memIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &identity, nil
}

func (r *memIdentityRepository) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, identity := range r.identities {
		if identity.Email == email {
			copied := identity
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memIdentityRepository) List(_ context.Context) ([]domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Identity, 0, len(r.identities))
	for _, identity := range r.identities {
		out = append(out, identity)
	}
	return out, nil
}

func (r *memIdentityRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
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

func (r *memIdentityRepository) UpdatePassword(_ context.Context, id string, passwordHash string, changedAt time.Time) error {
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

func (r *memIdentityRepository) SetActive(_ context.Context, id string, active bool) error {
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

type memTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshToken
}

func newMemTokenRepository() *memTokenRepository {
	return &memTokenRepository{tokens: make(map[string]domain.RefreshToken)}
}

func (r *memTokenRepository) Create(_ context.Context, token domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.ID] = token
	return nil
}

func (r *memTokenRepository) GetByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.TokenHash == hash {
			copied := token
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memTokenRepository) Revoke(_ context.Context, tokenID string, at time.Time) (bool, error) {
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

func (r *memTokenRepository) RevokeAllForIdentity(_ context.Context, identityID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	revoked := 0
	for id, token := range r.tokens {
		if token.IdentityID == identityID && token.RevokedAt == nil {
			token.RevokedAt = &at
			r.tokens[id] = token
			revoked++
		}
	}
	return revoked, nil
}

func (r *memTokenRepository) PurgeExpiredOrRevoked(_ context.Context, reference time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	purged := 0
	for id, token := range r.tokens {
		if token.RevokedAt != nil || !token.ExpiresAt.After(reference) {
			delete(r.tokens, id)
			purged++
		}
	}
	return purged, nil
}

type handlerFixture struct {
	router     *gin.Engine
	identities *memIdentityRepository
	tokens     *memTokenRepository
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	identities := newMemIdentityRepository()
	tokens := newMemTokenRepository()

	signer, err := security.NewTokenSigner("access-secret-for-tests", "refresh-secret-for-tests")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	jwtCfg := config.JWTSettings{
		AccessTokenTTL:     "15m",
		RefreshTokenTTL:    "7d",
		ExtendedRefreshTTL: "30d",
	}

	logger := zaptest.NewLogger(t)
	verifier := usecase.NewCredentialVerifier(identities)
	issuer := usecase.NewTokenIssuer(jwtCfg, signer, tokens)
	sessions := usecase.NewSessionService(identities, tokens, verifier, issuer, signer, nil, nil, logger)
	registration := usecase.NewRegistrationService(identities, nil, nil, logger)
	identitySvc := usecase.NewIdentityService(identities, sessions, logger)

	router := gin.New()
	api := router.Group("/api/v1")

	authHandler := NewAuthHandler(sessions, registration)
	authHandler.RegisterRoutes(api.Group("/auth"), nil, nil)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.RequireAuth(sessions), middleware.RequireRole(domain.RoleAdmin))
	NewAdminHandler(identitySvc, sessions).RegisterRoutes(adminGroup)

	return &handlerFixture{
		router:     router,
		identities: identities,
		tokens:     tokens,
	}
}

func (f *handlerFixture) seed(t *testing.T, email, password string, role domain.Role) domain.Identity {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	identity := domain.Identity{
		ID:           uuid.NewString(),
		Email:        domain.NormalizeEmail(email),
		Name:         "Seeded Identity",
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := f.identities.Create(context.Background(), identity); err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	return identity
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func (f *handlerFixture) login(t *testing.T, email, password string) TokenPairResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: email, Password: password}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[TokenPairResponse](t, rec)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestRegisterCreatesIdentity(t *testing.T) {
	f := newHandlerFixture(t)

	// The password must clear the full default policy, zxcvbn floor included,
	// or this test exercises the rejection path instead of creation.
	const password = "C0mplex!Passphrase#2026"
	if err := security.DefaultPasswordValidator().Validate(password); err != nil {
		t.Fatalf("test password rejected by policy: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Email:    "New.Person@pns.com",
		Password: password,
		Name:     "New Person",
		Role:     "prevention",
	}, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	pair := decodeBody[TokenPairResponse](t, rec)
	if pair.Identity.Email != "new.person@pns.com" {
		t.Fatalf("email = %q, want normalized", pair.Identity.Email)
	}
	if pair.Identity.Role != string(domain.RolePrevention) {
		t.Fatalf("role = %q, want %q", pair.Identity.Role, domain.RolePrevention)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a token pair for the fresh account")
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "taken@pns.com", "Str0ng-Passw0rd!", domain.RoleOperations)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Email:    "taken@pns.com",
		Password: "C0mplex!Passphrase#2026",
		Name:     "Dup",
		Role:     "Operations",
	}, nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestRegisterDuplicateEmailConflictsEvenWithWeakPassword(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "taken@pns.com", "Str0ng-Passw0rd!", domain.RoleOperations)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Email:    "taken@pns.com",
		Password: "password123",
		Name:     "Dup",
		Role:     "Operations",
	}, nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestLoginReturnsTokenPair(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "admin@pns.com", "Str0ng-Passw0rd!", domain.RoleAdmin)

	pair := f.login(t, "admin@pns.com", "Str0ng-Passw0rd!")

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens in the response")
	}
	if pair.ExpiresIn != 900 {
		t.Fatalf("expires_in = %d, want 900", pair.ExpiresIn)
	}
	if pair.Identity.Email != "admin@pns.com" {
		t.Fatalf("identity email = %q", pair.Identity.Email)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "admin@pns.com", "Str0ng-Passw0rd!", domain.RoleAdmin)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Email:    "admin@pns.com",
		Password: "wrong-password",
	}, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRefreshRotatesAndInvalidatesOldToken(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "hr@pns.com", "Str0ng-Passw0rd!", domain.RoleHR)
	pair := f.login(t, "hr@pns.com", "Str0ng-Passw0rd!")

	rec := f.do(t, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	rotated := decodeBody[TokenPairResponse](t, rec)
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	replay := f.do(t, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, nil)
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want 401", replay.Code)
	}
}

func TestLogoutIsAlwaysSuccessful(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "ops@pns.com", "Str0ng-Passw0rd!", domain.RoleOperations)
	pair := f.login(t, "ops@pns.com", "Str0ng-Passw0rd!")

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/api/v1/auth/logout", LogoutRequest{RefreshToken: pair.RefreshToken}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("logout attempt %d status = %d", i+1, rec.Code)
		}
	}

	rec := f.do(t, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", rec.Code)
	}
}

func TestMeRequiresAuthentication(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/auth/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMeReturnsAuthenticatedIdentity(t *testing.T) {
	f := newHandlerFixture(t)
	seeded := f.seed(t, "committee@pns.com", "Str0ng-Passw0rd!", domain.RoleCommittee)
	pair := f.login(t, "committee@pns.com", "Str0ng-Passw0rd!")

	rec := f.do(t, http.MethodGet, "/api/v1/auth/me", nil, bearer(pair.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	summary := decodeBody[IdentitySummary](t, rec)
	if summary.ID != seeded.ID {
		t.Fatalf("id = %q, want %q", summary.ID, seeded.ID)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "mgmt@pns.com", "Str0ng-Passw0rd!", domain.RoleManagement)
	first := f.login(t, "mgmt@pns.com", "Str0ng-Passw0rd!")
	second := f.login(t, "mgmt@pns.com", "Str0ng-Passw0rd!")

	rec := f.do(t, http.MethodPost, "/api/v1/auth/password/change", ChangePasswordRequest{
		CurrentPassword: "Str0ng-Passw0rd!",
		NewPassword:     "Fresh-Passw0rd-2!",
	}, bearer(first.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[ChangePasswordResponse](t, rec)
	if resp.TokensRevoked != 2 {
		t.Fatalf("tokens_revoked = %d, want 2", resp.TokensRevoked)
	}

	replay := f.do(t, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: second.RefreshToken}, nil)
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("old refresh token still works, status = %d", replay.Code)
	}

	f.login(t, "mgmt@pns.com", "Fresh-Passw0rd-2!")
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "mgmt@pns.com", "Str0ng-Passw0rd!", domain.RoleManagement)
	pair := f.login(t, "mgmt@pns.com", "Str0ng-Passw0rd!")

	rec := f.do(t, http.MethodPost, "/api/v1/auth/password/change", ChangePasswordRequest{
		CurrentPassword: "not-the-password",
		NewPassword:     "Fresh-Passw0rd-2!",
	}, bearer(pair.AccessToken))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "hr@pns.com", "Str0ng-Passw0rd!", domain.RoleHR)
	pair := f.login(t, "hr@pns.com", "Str0ng-Passw0rd!")

	rec := f.do(t, http.MethodGet, "/api/v1/admin/identities", nil, bearer(pair.AccessToken))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAdminListIdentities(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "admin@pns.com", "Str0ng-Passw0rd!", domain.RoleAdmin)
	f.seed(t, "ops@pns.com", "Str0ng-Passw0rd!", domain.RoleOperations)
	pair := f.login(t, "admin@pns.com", "Str0ng-Passw0rd!")

	rec := f.do(t, http.MethodGet, "/api/v1/admin/identities", nil, bearer(pair.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	list := decodeBody[IdentityListResponse](t, rec)
	if list.Total != 2 {
		t.Fatalf("total = %d, want 2", list.Total)
	}
}

func TestAdminDeactivateBlocksLogin(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "admin@pns.com", "Str0ng-Passw0rd!", domain.RoleAdmin)
	target := f.seed(t, "ops@pns.com", "Str0ng-Passw0rd!", domain.RoleOperations)
	pair := f.login(t, "admin@pns.com", "Str0ng-Passw0rd!")

	rec := f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/admin/identities/%s/deactivate", target.ID), nil, bearer(pair.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d, body %s", rec.Code, rec.Body.String())
	}

	login := f.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Email:    "ops@pns.com",
		Password: "Str0ng-Passw0rd!",
	}, nil)
	if login.Code != http.StatusUnauthorized {
		t.Fatalf("login after deactivate status = %d, want 401", login.Code)
	}

	reactivate := f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/admin/identities/%s/reactivate", target.ID), nil, bearer(pair.AccessToken))
	if reactivate.Code != http.StatusOK {
		t.Fatalf("reactivate status = %d", reactivate.Code)
	}

	f.login(t, "ops@pns.com", "Str0ng-Passw0rd!")
}

func TestAdminTokenCleanup(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "admin@pns.com", "Str0ng-Passw0rd!", domain.RoleAdmin)
	pair := f.login(t, "admin@pns.com", "Str0ng-Passw0rd!")

	victim := f.login(t, "admin@pns.com", "Str0ng-Passw0rd!")
	logout := f.do(t, http.MethodPost, "/api/v1/auth/logout", LogoutRequest{RefreshToken: victim.RefreshToken}, nil)
	if logout.Code != http.StatusOK {
		t.Fatalf("logout status = %d", logout.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/admin/tokens/cleanup", nil, bearer(pair.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[CleanupResponse](t, rec)
	if resp.Purged != 1 {
		t.Fatalf("purged = %d, want 1", resp.Purged)
	}

	f.tokens.mu.Lock()
	remaining := len(f.tokens.tokens)
	f.tokens.mu.Unlock()
	if remaining != 1 {
		t.Fatalf("remaining records = %d, want only the live session", remaining)
	}
}
