// Package domain holds the session aggregate.
package domain

import "time"

// Session is one logged-in device for a user. RefreshJTI identifies the
// refresh token bound to the session; AccessJTI tracks the most recently
// minted access token so logout can revoke both.
type Session struct {
	ID         string
	UserID     string
	RefreshJTI string
	AccessJTI  string
	UserAgent  string
	IPAddress  string
	IsActive   bool
	ExpiresAt  time.Time
	LastUsedAt time.Time
	CreatedAt  time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Usable reports whether the session can still authenticate: active and not expired.
func (s *Session) Usable(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}
