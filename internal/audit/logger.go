// Package audit records security-relevant events. Writes are best-effort:
// an audit failure never fails the operation being audited.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"vehicle-rental-platform/authcore/internal/audit/domain"
)

// Actions recorded by the auth flows.
const (
	ActionRegister       = "register"
	ActionEmailVerified  = "email_verified"
	ActionLoginPassword  = "login_password_ok"
	ActionLoginFailed    = "login_failed"
	ActionLoginOTPIssued = "login_otp_issued"
	ActionLoginComplete  = "login_complete"
	ActionOTPBlocked     = "otp_blocked"
	ActionTokenRefresh   = "token_refresh"
	ActionLogout         = "logout"
	ActionLogoutAll      = "logout_all"
	ActionSessionRevoked = "session_revoked"
)

// Repository is the persistence surface the logger needs.
type Repository interface {
	Insert(ctx context.Context, e *domain.Entry) error
}

// AuditLogger writes a single audit event with explicit action/resource.
type AuditLogger interface {
	LogEvent(ctx context.Context, actorID, action, resource string, detail map[string]any)
}

// Logger implements AuditLogger on top of a repository.
type Logger struct {
	repo Repository
}

// NewLogger returns an AuditLogger persisting to repo. repo may be nil;
// events are then dropped silently.
func NewLogger(repo Repository) *Logger {
	return &Logger{repo: repo}
}

// LogEvent writes one audit entry. Errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, actorID, action, resource string, detail map[string]any) {
	if l == nil || l.repo == nil {
		return
	}
	entry := &domain.Entry{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Insert(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
