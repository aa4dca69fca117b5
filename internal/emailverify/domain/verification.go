// Package domain holds the email verification challenge.
package domain

import "time"

// Verification is an email ownership challenge. Token is an opaque random
// string sent to the address; the account stays unverified until it comes back.
type Verification struct {
	ID     string
	UserID string
	// Email is the address being proven; kept on the row so the challenge
	// survives a later change to the account's address.
	Email string
	Token string
	// SentCount tracks how many times the email was (re)sent for this challenge.
	SentCount  int
	LastSentAt time.Time
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (v *Verification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// Verified reports whether the challenge was completed.
func (v *Verification) Verified() bool {
	return v.VerifiedAt != nil
}
