package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/domain"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/core/port"
	"github.com/Marta3030/Proyecto-prevention-and-safety/internal/repository"
)

var identityColumns = []string{
	"id",
	"email",
	"name",
	"password_hash",
	"role",
	"avatar_url",
	"is_active",
	"last_login",
	"created_at",
	"updated_at",
}

// IdentityRepository implements port.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewIdentityRepository(exec pgExecutor) *IdentityRepository {
	repo := &IdentityRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *IdentityRepository) WithTx(tx pgx.Tx) *IdentityRepository {
	if tx == nil {
		return r
	}
	return &IdentityRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new identity row. Email is stored in normalized form.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	stmt, args, err := r.builder.Insert("auth.identities").
		Columns(identityColumns...).
		Values(
			identity.ID,
			domain.NormalizeEmail(identity.Email),
			identity.Name,
			identity.PasswordHash,
			identity.Role,
			identity.AvatarURL,
			identity.IsActive,
			identity.LastLogin,
			identity.CreatedAt,
			identity.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

// GetByID retrieves an identity by its identifier.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	stmt, args, err := r.builder.Select(identityColumns...).
		From("auth.identities").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	return r.scanIdentity(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail retrieves an identity by case-normalized email.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	stmt, args, err := r.builder.Select(identityColumns...).
		From("auth.identities").
		Where(squirrel.Eq{"email": domain.NormalizeEmail(email)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	return r.scanIdentity(r.exec.QueryRow(ctx, stmt, args...))
}

// List returns every identity ordered by creation time.
func (r *IdentityRepository) List(ctx context.Context) ([]domain.Identity, error) {
	stmt, args, err := r.builder.Select(identityColumns...).
		From("auth.identities").
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list identities sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []domain.Identity
	for rows.Next() {
		identity, err := r.scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	return identities, nil
}

// UpdateLastLogin records the moment of a successful login.
func (r *IdentityRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("auth.identities").
		Set("last_login", at.UTC()).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("auth.identities").
		Set("password_hash", passwordHash).
		Set("updated_at", changedAt.UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetActive toggles the soft-deactivation flag. Identities are never deleted.
func (r *IdentityRepository) SetActive(ctx context.Context, id string, active bool) error {
	stmt, args, err := r.builder.Update("auth.identities").
		Set("is_active", active).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set active sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *IdentityRepository) scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		identity  domain.Identity
		role      string
		avatarURL sql.NullString
		lastLogin sql.NullTime
	)

	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.Name,
		&identity.PasswordHash,
		&role,
		&avatarURL,
		&identity.IsActive,
		&lastLogin,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	identity.Role = domain.Role(role)
	if avatarURL.Valid {
		value := avatarURL.String
		identity.AvatarURL = &value
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		identity.LastLogin = &t
	}

	return &identity, nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
