// Package repository persists sessions in Postgres.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vehicle-rental-platform/authcore/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, refresh_jti, access_jti, user_agent, ip_address, is_active, expires_at, last_used_at, created_at`

// Create persists the session. The session must have ID, UserID, RefreshJTI,
// AccessJTI, and ExpiresAt set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_sessions (id, user_id, refresh_jti, access_jti, user_agent, ip_address, is_active, expires_at, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, now(), now())`,
		s.ID, s.UserID, s.RefreshJTI, s.AccessJTI, s.UserAgent, s.IPAddress, s.ExpiresAt,
	)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetByRefreshJTI returns the session bound to the given refresh jti, or nil if not found.
func (r *PostgresRepository) GetByRefreshJTI(ctx context.Context, jti string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE refresh_jti = $1`, jti)
	return scanSession(row)
}

// ListActiveByUser returns the user's active, unexpired sessions, most
// recently used first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions
		 WHERE user_id = $1 AND is_active AND expires_at > now()
		 ORDER BY last_used_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.RefreshJTI, &s.AccessJTI, &s.UserAgent,
			&s.IPAddress, &s.IsActive, &s.ExpiresAt, &s.LastUsedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ListActiveByUserExcept is ListActiveByUser minus one session (used for
// logout-others).
func (r *PostgresRepository) ListActiveByUserExcept(ctx context.Context, userID, exceptID string) ([]*domain.Session, error) {
	all, err := r.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if s.ID != exceptID {
			out = append(out, s)
		}
	}
	return out, nil
}

// Deactivate marks the session inactive. Missing rows are not an error.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE id = $1`, id)
	return err
}

// UpdateAccessJTI records the jti of the latest access token minted for the
// session and bumps last_used_at.
func (r *PostgresRepository) UpdateAccessJTI(ctx context.Context, id, accessJTI string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET access_jti = $2, last_used_at = now() WHERE id = $1`, id, accessJTI)
	return err
}

// DeleteExpired removes sessions that expired more than seven days ago. The
// grace window keeps recently expired rows around for support queries.
// Returns the number of rows removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at <= now() - interval '7 days'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteInactiveBefore removes deactivated sessions older than cutoff.
func (r *PostgresRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE NOT is_active AND last_used_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshJTI, &s.AccessJTI, &s.UserAgent,
		&s.IPAddress, &s.IsActive, &s.ExpiresAt, &s.LastUsedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
