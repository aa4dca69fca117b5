// Package session manages the lifetime of logged-in devices. Deactivating a
// session always revokes the tokens bound to it; the two must not drift apart.
package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	revdomain "vehicle-rental-platform/authcore/internal/revocation/domain"
	"vehicle-rental-platform/authcore/internal/security"
	"vehicle-rental-platform/authcore/internal/session/domain"
	"vehicle-rental-platform/authcore/internal/telemetry"
)

var (
	// ErrSessionNotFound is returned when the session id does not exist or is already gone.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotSessionOwner is returned when a user targets a session belonging to someone else.
	ErrNotSessionOwner = errors.New("session does not belong to user")
)

// Repository is the persistence surface the registry needs.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByRefreshJTI(ctx context.Context, jti string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	ListActiveByUserExcept(ctx context.Context, userID, exceptID string) ([]*domain.Session, error)
	Deactivate(ctx context.Context, id string) error
	UpdateAccessJTI(ctx context.Context, id, accessJTI string) error
	DeleteExpired(ctx context.Context) (int64, error)
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Revoker records token revocations.
type Revoker interface {
	Revoke(ctx context.Context, rec *revdomain.Record) error
}

// Registry manages sessions and keeps token revocation in lockstep with
// session deactivation.
type Registry struct {
	repo      Repository
	revoker   Revoker
	ttl       time.Duration
	telemetry *telemetry.AsyncEmitter
}

// NewRegistry returns a Registry. ttl is the session (refresh) lifetime.
// emitter may be nil.
func NewRegistry(repo Repository, revoker Revoker, ttl time.Duration, emitter *telemetry.AsyncEmitter) *Registry {
	return &Registry{repo: repo, revoker: revoker, ttl: ttl, telemetry: emitter}
}

// Create opens a new session for the user bound to the given token jtis.
func (r *Registry) Create(ctx context.Context, userID, refreshJTI, accessJTI, userAgent, ip string) (*domain.Session, error) {
	now := time.Now().UTC()
	s := &domain.Session{
		ID:         uuid.New().String(),
		UserID:     userID,
		RefreshJTI: refreshJTI,
		AccessJTI:  accessJTI,
		UserAgent:  userAgent,
		IPAddress:  ip,
		IsActive:   true,
		ExpiresAt:  now.Add(r.ttl),
		LastUsedAt: now,
		CreatedAt:  now,
	}
	if err := r.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListActive returns the user's active, unexpired sessions.
func (r *Registry) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	return r.repo.ListActiveByUser(ctx, userID)
}

// GetByRefreshJTI returns the session bound to a refresh token's jti, or nil.
func (r *Registry) GetByRefreshJTI(ctx context.Context, jti string) (*domain.Session, error) {
	return r.repo.GetByRefreshJTI(ctx, jti)
}

// RotateAccessJTI records a newly minted access token on the session.
func (r *Registry) RotateAccessJTI(ctx context.Context, sessionID, accessJTI string) error {
	return r.repo.UpdateAccessJTI(ctx, sessionID, accessJTI)
}

// InvalidateOne deactivates one of the user's sessions and revokes its
// tokens. Targeting another user's session returns ErrNotSessionOwner
// without leaking whether it exists.
func (r *Registry) InvalidateOne(ctx context.Context, userID, sessionID string) error {
	s, err := r.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrSessionNotFound
	}
	if s.UserID != userID {
		return ErrNotSessionOwner
	}
	return r.invalidate(ctx, s)
}

// InvalidateAll deactivates every active session of the user and revokes all
// their tokens. Returns the number of sessions invalidated.
func (r *Registry) InvalidateAll(ctx context.Context, userID string) (int, error) {
	sessions, err := r.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return r.invalidateEach(ctx, sessions)
}

// InvalidateOthers deactivates every active session of the user except the
// one named, revoking their tokens. Logging out of all other devices keeps
// the current one alive.
func (r *Registry) InvalidateOthers(ctx context.Context, userID, keepSessionID string) (int, error) {
	keep, err := r.repo.GetByID(ctx, keepSessionID)
	if err != nil {
		return 0, err
	}
	if keep == nil {
		return 0, ErrSessionNotFound
	}
	if keep.UserID != userID {
		return 0, ErrNotSessionOwner
	}
	sessions, err := r.repo.ListActiveByUserExcept(ctx, userID, keepSessionID)
	if err != nil {
		return 0, err
	}
	return r.invalidateEach(ctx, sessions)
}

func (r *Registry) invalidateEach(ctx context.Context, sessions []*domain.Session) (int, error) {
	var n int
	for _, s := range sessions {
		if err := r.invalidate(ctx, s); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// invalidate revokes both tokens first, then deactivates the row. If the
// process dies between the two, the session looks active but its tokens are
// dead, which fails safe.
func (r *Registry) invalidate(ctx context.Context, s *domain.Session) error {
	if err := r.revokeTokens(ctx, s); err != nil {
		return err
	}
	if err := r.repo.Deactivate(ctx, s.ID); err != nil {
		return err
	}
	r.emit(ctx, telemetry.EventSessionRevoked, s.UserID, map[string]any{"session_id": s.ID})
	return nil
}

func (r *Registry) revokeTokens(ctx context.Context, s *domain.Session) error {
	if s.RefreshJTI != "" {
		if err := r.revokeOne(ctx, s, s.RefreshJTI, security.TokenTypeRefresh); err != nil {
			return err
		}
	}
	if s.AccessJTI != "" {
		if err := r.revokeOne(ctx, s, s.AccessJTI, security.TokenTypeAccess); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) revokeOne(ctx context.Context, s *domain.Session, jti, tokenType string) error {
	rec := &revdomain.Record{
		JTI:       jti,
		TokenType: tokenType,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt,
	}
	if err := r.revoker.Revoke(ctx, rec); err != nil {
		return err
	}
	r.emit(ctx, telemetry.EventTokenRevoked, s.UserID, map[string]any{"jti": jti, "token_type": tokenType})
	return nil
}

func (r *Registry) emit(ctx context.Context, eventType, userID string, detail map[string]any) {
	if r.telemetry != nil {
		r.telemetry.Emit(ctx, telemetry.Event{Type: eventType, UserID: userID, Detail: detail})
	}
}

// CleanupExpired removes sessions past their expiry. Used by the janitor.
func (r *Registry) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := r.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("session: removed %d expired sessions", n)
	}
	return n, nil
}

// CleanupInactive removes deactivated sessions untouched for the given age.
func (r *Registry) CleanupInactive(ctx context.Context, age time.Duration) (int64, error) {
	return r.repo.DeleteInactiveBefore(ctx, time.Now().UTC().Add(-age))
}
