// Package emailverify proves email ownership before an account can log in.
package emailverify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"vehicle-rental-platform/authcore/internal/emailverify/domain"
)

// maxSends caps resends on one challenge before a new registration is required.
const maxSends = 5

var (
	// ErrTokenUnknown is returned for tokens that match no challenge.
	ErrTokenUnknown = errors.New("unknown verification token")
	// ErrTokenExpired is returned when the challenge has expired.
	ErrTokenExpired = errors.New("verification token expired")
	// ErrAlreadyVerified is returned when the challenge was already completed.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrResendCooldown is returned when a resend comes too soon after the last send.
	ErrResendCooldown = errors.New("wait before requesting another verification email")
	// ErrTooManySends is returned once the resend cap is reached.
	ErrTooManySends = errors.New("verification email resent too many times")
	// ErrNoChallenge is returned when a resend is requested but no challenge exists.
	ErrNoChallenge = errors.New("no verification pending")
)

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, v *domain.Verification) error
	GetByToken(ctx context.Context, token string) (*domain.Verification, error)
	GetLatestByUser(ctx context.Context, userID string) (*domain.Verification, error)
	MarkVerified(ctx context.Context, id string) (bool, error)
	BumpSent(ctx context.Context, id string, newExpiry time.Time) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserVerifier flips the verified flag on the account.
type UserVerifier interface {
	SetEmailVerified(ctx context.Context, id string) error
}

// Service manages email verification challenges.
type Service struct {
	repo           Repository
	users          UserVerifier
	ttl            time.Duration
	resendCooldown time.Duration
}

// NewService returns an email verification service. ttl is the challenge
// lifetime (typically 24h).
func NewService(repo Repository, users UserVerifier, ttl, resendCooldown time.Duration) *Service {
	return &Service{repo: repo, users: users, ttl: ttl, resendCooldown: resendCooldown}
}

// Start creates a challenge for a freshly registered user and returns it;
// the caller delivers the token.
func (s *Service) Start(ctx context.Context, userID, email string) (*domain.Verification, error) {
	now := time.Now().UTC()
	v := &domain.Verification{
		ID:         uuid.New().String(),
		UserID:     userID,
		Email:      email,
		Token:      uuid.New().String(),
		SentCount:  1,
		LastSentAt: now,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Confirm completes the challenge carrying token and marks the account
// verified. Returns the verified user's id.
func (s *Service) Confirm(ctx context.Context, token string) (string, error) {
	v, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", ErrTokenUnknown
	}
	if v.Verified() {
		return "", ErrAlreadyVerified
	}
	if v.Expired(time.Now().UTC()) {
		return "", ErrTokenExpired
	}

	done, err := s.repo.MarkVerified(ctx, v.ID)
	if err != nil {
		return "", err
	}
	if !done {
		return "", ErrAlreadyVerified
	}
	if err := s.users.SetEmailVerified(ctx, v.UserID); err != nil {
		return "", err
	}
	return v.UserID, nil
}

// Resend refreshes the user's pending challenge: bumps the send counter and
// extends expiry. The same token is reused so earlier emails stay valid.
func (s *Service) Resend(ctx context.Context, userID string) (*domain.Verification, error) {
	v, err := s.repo.GetLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNoChallenge
	}
	if v.Verified() {
		return nil, ErrAlreadyVerified
	}
	now := time.Now().UTC()
	if now.Sub(v.LastSentAt) < s.resendCooldown {
		return nil, ErrResendCooldown
	}
	if v.SentCount >= maxSends {
		return nil, ErrTooManySends
	}

	newExpiry := now.Add(s.ttl)
	if err := s.repo.BumpSent(ctx, v.ID, newExpiry); err != nil {
		return nil, err
	}
	v.SentCount++
	v.LastSentAt = now
	v.ExpiresAt = newExpiry
	return v, nil
}

// CleanupExpired removes unverified challenges that expired before the
// retention cutoff. Used by the janitor.
func (s *Service) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteExpiredBefore(ctx, time.Now().UTC().Add(-retention))
}
