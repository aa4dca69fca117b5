// Package repository persists users in Postgres.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vehicle-rental-platform/authcore/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, password_hash, role, phone, email_verified, is_active, otp_blocked_until, last_login_at, login_count, created_at, updated_at`

// Create persists the user. The caller sets ID, Email, PasswordHash, and Role.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, phone, email_verified, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Phone, u.EmailVerified, u.IsActive,
	)
	return err
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetByID returns the user with the given id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// SetEmailVerified marks the user's email as verified.
func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_verified = TRUE, updated_at = now() WHERE id = $1`, id)
	return err
}

// SetOTPBlockedUntil sets or clears the user's OTP flood lockout.
func (r *PostgresRepository) SetOTPBlockedUntil(ctx context.Context, id string, until *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET otp_blocked_until = $2, updated_at = now() WHERE id = $1`,
		id, timeToNullTime(until))
	return err
}

// RecordLogin bumps the user's login tracking after a completed login.
func (r *PostgresRepository) RecordLogin(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET last_login_at = now(), login_count = login_count + 1, updated_at = now()
		WHERE id = $1`, id)
	return err
}

// SetActive activates or deactivates the account. Tokens minted for a
// deactivated account fail the live user recheck.
func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var blockedUntil, lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Phone, &u.EmailVerified,
		&u.IsActive, &blockedUntil, &lastLogin, &u.LoginCount, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.OTPBlockedUntil = nullTimeToPtr(blockedUntil)
	u.LastLoginAt = nullTimeToPtr(lastLogin)
	return &u, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
