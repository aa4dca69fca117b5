// Package repository persists login OTP challenges in Postgres.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vehicle-rental-platform/authcore/internal/otp/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an OTP repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const otpColumns = `id, user_id, code_hash, ip_address, user_agent, attempts, blocked_until, expires_at, consumed_at, created_at`

// Create persists a fresh challenge and retires any previous unconsumed one
// for the same user, keeping at most one live code per user.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.LoginOTP) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE login_otps SET expires_at = now()
		WHERE user_id = $1 AND consumed_at IS NULL AND expires_at > now()`,
		o.UserID,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO login_otps (id, user_id, code_hash, ip_address, user_agent, attempts, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, now())`,
		o.ID, o.UserID, o.CodeHash, o.IPAddress, o.UserAgent, o.ExpiresAt,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetLatestByUser returns the user's newest challenge regardless of state,
// or nil if the user has never been issued one. Expiry, consumption, and
// blocking are judged by the caller against the returned row.
func (r *PostgresRepository) GetLatestByUser(ctx context.Context, userID string) (*domain.LoginOTP, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+otpColumns+` FROM login_otps
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID)
	return scanOTP(row)
}

// IncrementAttempts adds one wrong submission to the challenge and returns
// the new attempt count.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE login_otps SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`,
		id).Scan(&attempts)
	return attempts, err
}

// SetBlockedUntil places an attempt lockout on the challenge.
func (r *PostgresRepository) SetBlockedUntil(ctx context.Context, id string, until time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE login_otps SET blocked_until = $2 WHERE id = $1`, id, until)
	return err
}

// MarkConsumed marks the challenge used. Returns false if it was already
// consumed, so concurrent verifications cannot both win.
func (r *PostgresRepository) MarkConsumed(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE login_otps SET consumed_at = now() WHERE id = $1 AND consumed_at IS NULL`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountIssuedSince returns how many challenges were issued to the user after
// since. Drives the flood lockout.
func (r *PostgresRepository) CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM login_otps WHERE user_id = $1 AND created_at >= $2`,
		userID, since).Scan(&n)
	return n, err
}

// DeleteExpiredBefore removes challenges that expired before cutoff.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM login_otps WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanOTP(row *sql.Row) (*domain.LoginOTP, error) {
	var o domain.LoginOTP
	var blockedUntil, consumedAt sql.NullTime
	err := row.Scan(&o.ID, &o.UserID, &o.CodeHash, &o.IPAddress, &o.UserAgent,
		&o.Attempts, &blockedUntil, &o.ExpiresAt, &consumedAt, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	o.BlockedUntil = nullTimeToPtr(blockedUntil)
	o.ConsumedAt = nullTimeToPtr(consumedAt)
	return &o, nil
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
