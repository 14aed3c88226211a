package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
)

func newIdentityFixture(t *testing.T) (*IdentityService, *sessionFixture) {
	t.Helper()

	fx := newSessionFixture(t)
	service := NewIdentityService(fx.identities, fx.service, zaptest.NewLogger(t))
	return service, fx
}

func TestIdentityListStripsHashes(t *testing.T) {
	service, fx := newIdentityFixture(t)
	seedIdentity(t, fx.identities, "one@pns.com", "Str0ng!Passphrase", domain.RoleHR, true)
	seedIdentity(t, fx.identities, "two@pns.com", "Str0ng!Passphrase", domain.RoleAdmin, false)

	identities, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(identities) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(identities))
	}
	for _, identity := range identities {
		if identity.PasswordHash != "" {
			t.Fatalf("identity %s returned with password hash", identity.Email)
		}
	}
}

func TestIdentityGetNotFound(t *testing.T) {
	service, _ := newIdentityFixture(t)

	if _, err := service.Get(context.Background(), "missing"); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestDeactivateRevokesSessions(t *testing.T) {
	service, fx := newIdentityFixture(t)
	identity := seedIdentity(t, fx.identities, "user@pns.com", "Str0ng!Passphrase", domain.RoleOperations, true)

	login, err := fx.service.Login(context.Background(), LoginInput{Email: identity.Email, Password: "Str0ng!Passphrase"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := service.Deactivate(context.Background(), identity.ID); err != nil {
		t.Fatalf("Deactivate returned error: %v", err)
	}

	stored, err := fx.identities.GetByID(context.Background(), identity.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if stored.IsActive {
		t.Fatal("identity still active after deactivation")
	}

	record, _ := fx.tokens.get(login.Pair.RefreshTokenID)
	if record.RevokedAt == nil {
		t.Fatal("refresh token not revoked on deactivation")
	}

	if _, err := fx.service.Login(context.Background(), LoginInput{Email: identity.Email, Password: "Str0ng!Passphrase"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after deactivation, got %v", err)
	}
}

func TestReactivateRestoresLogin(t *testing.T) {
	service, fx := newIdentityFixture(t)
	identity := seedIdentity(t, fx.identities, "user@pns.com", "Str0ng!Passphrase", domain.RoleHR, false)

	if err := service.Reactivate(context.Background(), identity.ID); err != nil {
		t.Fatalf("Reactivate returned error: %v", err)
	}

	if _, err := fx.service.Login(context.Background(), LoginInput{Email: identity.Email, Password: "Str0ng!Passphrase"}); err != nil {
		t.Fatalf("Login after reactivation returned error: %v", err)
	}
}

func TestDeactivateUnknownIdentity(t *testing.T) {
	service, _ := newIdentityFixture(t)

	if err := service.Deactivate(context.Background(), "missing"); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}
