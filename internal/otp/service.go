// Package otp issues and verifies one-time login codes with two layers of
// throttling: a per-code attempt limit and a per-user issuance flood limit.
package otp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"vehicle-rental-platform/authcore/internal/otp/domain"
	"vehicle-rental-platform/authcore/internal/security"
	userdomain "vehicle-rental-platform/authcore/internal/user/domain"
	"vehicle-rental-platform/authcore/internal/validation"
)

// floodWindow is how far back issuance counts when deciding a user-level lockout.
const floodWindow = time.Hour

var (
	// ErrUserBlocked is returned while the user is under an issuance flood lockout.
	ErrUserBlocked = errors.New("otp requests blocked for this user")
	// ErrResendCooldown is returned when a new code is requested too soon after the last one.
	ErrResendCooldown = errors.New("wait before requesting another code")
	// ErrNoActiveCode is returned when there is no live challenge to verify against.
	ErrNoActiveCode = errors.New("no active code")
	// ErrCodeExpired is returned when the challenge has expired.
	ErrCodeExpired = errors.New("code expired")
	// ErrCodeBlocked is returned while the challenge is under an attempt lockout.
	ErrCodeBlocked = errors.New("code blocked after too many attempts")
	// ErrCodeIncorrect is returned for a wrong code that has not yet hit the attempt limit.
	ErrCodeIncorrect = errors.New("incorrect code")
	// ErrCodeMalformed is returned for submissions that are not 6 digits; they never count as attempts.
	ErrCodeMalformed = errors.New("code must be 6 digits")
)

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, o *domain.LoginOTP) error
	GetLatestByUser(ctx context.Context, userID string) (*domain.LoginOTP, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	SetBlockedUntil(ctx context.Context, id string, until time.Time) error
	MarkConsumed(ctx context.Context, id string) (bool, error)
	CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserLimiter places and lifts the user-level flood lockout.
type UserLimiter interface {
	SetOTPBlockedUntil(ctx context.Context, id string, until *time.Time) error
}

// Config carries the throttling knobs.
type Config struct {
	TTL            time.Duration
	MaxAttempts    int
	BlockFor       time.Duration
	ResendCooldown time.Duration
	RequestLimit   int
	RequestBlock   time.Duration
}

// Service issues and verifies login codes.
type Service struct {
	repo    Repository
	limiter UserLimiter
	hasher  *security.Hasher
	cfg     Config
}

// NewService returns an OTP service.
func NewService(repo Repository, limiter UserLimiter, hasher *security.Hasher, cfg Config) *Service {
	return &Service{repo: repo, limiter: limiter, hasher: hasher, cfg: cfg}
}

// Issue creates a fresh challenge for the user and returns the plaintext code
// for delivery. The requester's ip and user agent are recorded on the row.
// Enforces the user lockout, the resend cooldown, and the flood limit, in
// that order.
func (s *Service) Issue(ctx context.Context, user *userdomain.User, ip, userAgent string) (string, error) {
	now := time.Now().UTC()

	if user.OTPBlocked(now) {
		return "", ErrUserBlocked
	}

	latest, err := s.repo.GetLatestByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if latest != nil && !latest.Consumed() && now.Sub(latest.CreatedAt) < s.cfg.ResendCooldown {
		return "", ErrResendCooldown
	}

	issued, err := s.repo.CountIssuedSince(ctx, user.ID, now.Add(-floodWindow))
	if err != nil {
		return "", err
	}
	if issued >= s.cfg.RequestLimit {
		until := now.Add(s.cfg.RequestBlock)
		if err := s.limiter.SetOTPBlockedUntil(ctx, user.ID, &until); err != nil {
			return "", err
		}
		return "", ErrUserBlocked
	}

	code, err := security.GenerateOTP()
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", err
	}

	challenge := &domain.LoginOTP{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CodeHash:  hash,
		IPAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, challenge); err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks code against the user's live challenge. Wrong codes count
// toward the attempt limit; hitting the limit blocks the challenge. A correct
// code on a blocked or expired challenge still fails.
func (s *Service) Verify(ctx context.Context, userID, code string) error {
	if !validation.OTPCode(code) {
		return ErrCodeMalformed
	}

	now := time.Now().UTC()
	challenge, err := s.repo.GetLatestByUser(ctx, userID)
	if err != nil {
		return err
	}
	if challenge == nil || challenge.Consumed() {
		return ErrNoActiveCode
	}
	if challenge.Blocked(now) {
		return ErrCodeBlocked
	}
	if challenge.Expired(now) {
		return ErrCodeExpired
	}

	match, err := s.hasher.Verify(code, challenge.CodeHash)
	if err != nil {
		return err
	}
	if !match {
		attempts, err := s.repo.IncrementAttempts(ctx, challenge.ID)
		if err != nil {
			return err
		}
		if attempts >= s.cfg.MaxAttempts {
			if err := s.repo.SetBlockedUntil(ctx, challenge.ID, now.Add(s.cfg.BlockFor)); err != nil {
				return err
			}
			return ErrCodeBlocked
		}
		return ErrCodeIncorrect
	}

	consumed, err := s.repo.MarkConsumed(ctx, challenge.ID)
	if err != nil {
		return err
	}
	if !consumed {
		// Lost a race with a concurrent verification of the same code.
		return ErrNoActiveCode
	}
	return nil
}

// Status describes the user's current challenge for UX (attempts left,
// lockout, expiry). Nil when there is no live challenge.
type Status struct {
	AttemptsLeft int
	BlockedUntil *time.Time
	ExpiresAt    time.Time
}

// Status returns the state of the user's live challenge, or nil. The gate
// order mirrors Verify: a block outlives the challenge's own expiry, so a
// blocked challenge is reported until the block lifts.
func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	challenge, err := s.repo.GetLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if challenge == nil || challenge.Consumed() {
		return nil, nil
	}
	if !challenge.Blocked(now) && challenge.Expired(now) {
		return nil, nil
	}
	left := s.cfg.MaxAttempts - challenge.Attempts
	if left < 0 {
		left = 0
	}
	return &Status{
		AttemptsLeft: left,
		BlockedUntil: challenge.BlockedUntil,
		ExpiresAt:    challenge.ExpiresAt,
	}, nil
}

// CleanupExpired removes challenges that expired before the retention cutoff.
// Used by the janitor.
func (s *Service) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteExpiredBefore(ctx, time.Now().UTC().Add(-retention))
}
