// Package repository persists audit log entries in Postgres.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"vehicle-rental-platform/authcore/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert persists the entry. Detail is marshaled to JSONB; a nil Detail is
// stored as an empty object.
func (r *PostgresRepository) Insert(ctx context.Context, e *domain.Entry) error {
	detail := e.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, resource, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		e.ID, e.ActorID, e.Action, e.Resource, raw,
	)
	return err
}

// DeleteBefore removes entries older than cutoff. Returns the number removed.
func (r *PostgresRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
