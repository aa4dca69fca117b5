// Package domain holds the login OTP challenge.
package domain

import "time"

// LoginOTP is a one-time code challenge issued during login. Only the
// argon2id hash of the code is stored.
type LoginOTP struct {
	ID       string
	UserID   string
	CodeHash string
	// IPAddress and UserAgent record the requester for audit trails.
	IPAddress string
	UserAgent string
	// Attempts counts wrong submissions against this code.
	Attempts int
	// BlockedUntil, when set and in the future, rejects all submissions for
	// this code regardless of correctness.
	BlockedUntil *time.Time
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	CreatedAt    time.Time
}

// Expired reports whether the code is past its expiry at now.
func (o *LoginOTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Blocked reports whether the code is under an attempt lockout at now.
func (o *LoginOTP) Blocked(now time.Time) bool {
	return o.BlockedUntil != nil && now.Before(*o.BlockedUntil)
}

// Consumed reports whether the code was already used.
func (o *LoginOTP) Consumed() bool {
	return o.ConsumedAt != nil
}
