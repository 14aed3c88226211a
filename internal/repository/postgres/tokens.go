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

var refreshTokenColumns = []string{
	"id",
	"identity_id",
	"token_hash",
	"ip",
	"user_agent",
	"created_at",
	"expires_at",
	"revoked_at",
}

// TokenRepository implements port.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	repo := &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	if tx == nil {
		return r
	}
	return &TokenRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a refresh token record.
func (r *TokenRepository) Create(ctx context.Context, token domain.RefreshToken) error {
	stmt, args, err := r.builder.Insert("auth.refresh_tokens").
		Columns(refreshTokenColumns...).
		Values(
			token.ID,
			token.IdentityID,
			token.TokenHash,
			token.IP,
			token.UserAgent,
			token.CreatedAt,
			token.ExpiresAt,
			token.RevokedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByHash retrieves a refresh token record by its hashed value.
func (r *TokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select(refreshTokenColumns...).
		From("auth.refresh_tokens").
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		token     domain.RefreshToken
		ip        sql.NullString
		userAgent sql.NullString
		revokedAt sql.NullTime
	)

	if err := row.Scan(
		&token.ID,
		&token.IdentityID,
		&token.TokenHash,
		&ip,
		&userAgent,
		&token.CreatedAt,
		&token.ExpiresAt,
		&revokedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	if ip.Valid {
		value := ip.String
		token.IP = &value
	}
	if userAgent.Valid {
		value := userAgent.String
		token.UserAgent = &value
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		token.RevokedAt = &t
	}

	return &token, nil
}

// Revoke performs the not-revoked to revoked transition as a single
// conditional update. The WHERE clause on revoked_at makes two racing calls
// for the same record resolve to exactly one transition; the loser observes
// zero affected rows and returns false.
func (r *TokenRepository) Revoke(ctx context.Context, tokenID string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update("auth.refresh_tokens").
		Set("revoked_at", at.UTC()).
		Where(squirrel.Eq{"id": tokenID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build revoke refresh token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// RevokeAllForIdentity revokes every currently valid token owned by the identity.
func (r *TokenRepository) RevokeAllForIdentity(ctx context.Context, identityID string, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update("auth.refresh_tokens").
		Set("revoked_at", at.UTC()).
		Where(squirrel.Eq{"identity_id": identityID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke refresh tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

// PurgeExpiredOrRevoked deletes records that are revoked or past expiry.
// Idempotent; safe to run concurrently with rotation since rotation only
// touches non-revoked, non-expired rows.
func (r *TokenRepository) PurgeExpiredOrRevoked(ctx context.Context, reference time.Time) (int, error) {
	stmt, args, err := r.builder.Delete("auth.refresh_tokens").
		Where(squirrel.Or{
			squirrel.Expr("revoked_at IS NOT NULL"),
			squirrel.LtOrEq{"expires_at": reference.UTC()},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge refresh tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
