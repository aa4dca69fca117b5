// Package repository persists token revocations in Postgres. The table is the
// trust boundary every validating service consults, so reads go through the
// is_token_revoked SQL function rather than ad hoc queries.
package repository

import (
	"context"
	"database/sql"

	"vehicle-rental-platform/authcore/internal/revocation/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a revocation repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Revoke records the token as revoked. Revoking the same (jti, token_type)
// twice is a no-op, not an error.
func (r *PostgresRepository) Revoke(ctx context.Context, rec *domain.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, token_type, user_id, revoked_at, expires_at)
		VALUES ($1, $2, $3, now(), $4)
		ON CONFLICT (jti, token_type) DO NOTHING`,
		rec.JTI, rec.TokenType, rec.UserID, rec.ExpiresAt,
	)
	return err
}

// IsRevoked reports whether the token identified by (jti, tokenType) has been
// revoked. Errors must be treated as "cannot prove not revoked" by callers.
func (r *PostgresRepository) IsRevoked(ctx context.Context, jti, tokenType string) (bool, error) {
	var revoked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT is_token_revoked($1, $2)`, jti, tokenType).Scan(&revoked)
	if err != nil {
		return false, err
	}
	return revoked, nil
}

// DeleteExpired removes revocation rows whose underlying tokens have expired;
// an expired token fails validation on its own, so the row is dead weight.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
