// Package repository persists email verification challenges in Postgres.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vehicle-rental-platform/authcore/internal/emailverify/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an email verification repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const verificationColumns = `id, user_id, email, token, sent_count, last_sent_at, expires_at, verified_at, created_at`

// Create persists a fresh challenge.
func (r *PostgresRepository) Create(ctx context.Context, v *domain.Verification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_verifications (id, user_id, email, token, sent_count, last_sent_at, expires_at, created_at)
		VALUES ($1, $2, $3, $4, 1, now(), $5, now())`,
		v.ID, v.UserID, v.Email, v.Token, v.ExpiresAt,
	)
	return err
}

// GetByToken returns the challenge carrying token, or nil if not found.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Verification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM email_verifications WHERE token = $1`, token)
	return scanVerification(row)
}

// GetLatestByUser returns the user's newest challenge, or nil if none exists.
func (r *PostgresRepository) GetLatestByUser(ctx context.Context, userID string) (*domain.Verification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM email_verifications
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID)
	return scanVerification(row)
}

// MarkVerified completes the challenge. Returns false if it was already completed.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_verifications SET verified_at = now() WHERE id = $1 AND verified_at IS NULL`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// BumpSent records a resend: increments sent_count, refreshes last_sent_at,
// and extends expiry to newExpiry.
func (r *PostgresRepository) BumpSent(ctx context.Context, id string, newExpiry time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_verifications
		SET sent_count = sent_count + 1, last_sent_at = now(), expires_at = $2
		WHERE id = $1`, id, newExpiry)
	return err
}

// DeleteExpiredBefore removes unverified challenges that expired before cutoff.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM email_verifications WHERE verified_at IS NULL AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanVerification(row *sql.Row) (*domain.Verification, error) {
	var v domain.Verification
	var verifiedAt sql.NullTime
	err := row.Scan(&v.ID, &v.UserID, &v.Email, &v.Token, &v.SentCount, &v.LastSentAt,
		&v.ExpiresAt, &verifiedAt, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if verifiedAt.Valid {
		v.VerifiedAt = &verifiedAt.Time
	}
	return &v, nil
}
