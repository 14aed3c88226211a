package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/repository"
)

func identityRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "name", "password_hash", "role", "avatar_url", "is_active", "last_login", "created_at", "updated_at",
	})
}

func TestIdentityRepository_Create_NormalizesEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	now := time.Now().UTC()
	identity := domain.Identity{
		ID:           "identity-1",
		Email:        "  Admin@PNS.com ",
		Name:         "Administrador General",
		PasswordHash: "hash",
		Role:         domain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(`INSERT INTO auth\.identities`).
		WithArgs(
			identity.ID,
			"admin@pns.com",
			identity.Name,
			identity.PasswordHash,
			identity.Role,
			(*string)(nil),
			true,
			(*time.Time)(nil),
			now,
			now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), identity); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	now := time.Now().UTC()
	rows := identityRows().AddRow(
		"identity-1", "admin@pns.com", "Administrador General", "hash", "Admin", nil, true, nil, now, now,
	)

	// Lookup arguments are normalized before hitting the database.
	mock.ExpectQuery(`SELECT .+ FROM auth\.identities WHERE email =`).
		WithArgs("admin@pns.com").
		WillReturnRows(rows)

	identity, err := repo.GetByEmail(context.Background(), "ADMIN@pns.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if identity.Role != domain.RoleAdmin {
		t.Fatalf("unexpected role %q", identity.Role)
	}
	if !identity.IsActive {
		t.Fatal("identity should be active")
	}
}

func TestIdentityRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM auth\.identities WHERE id =`).
		WithArgs("missing").
		WillReturnRows(identityRows())

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIdentityRepository_UpdateLastLogin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE auth\.identities SET last_login = .+ updated_at = .+ WHERE id =`).
		WithArgs(now, now, "identity-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdateLastLogin(context.Background(), "identity-1", now); err != nil {
		t.Fatalf("UpdateLastLogin returned error: %v", err)
	}
}

func TestIdentityRepository_SetActive_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	mock.ExpectExec(`UPDATE auth\.identities SET is_active =`).
		WithArgs(false, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SetActive(context.Background(), "missing", false); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
