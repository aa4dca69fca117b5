// Package domain holds the user aggregate.
package domain

import "time"

// Roles a user account can hold. Role is fixed at registration.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
)

// User is a registered account. PasswordHash is an argon2id PHC string and
// never leaves the service layer.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	Role          string
	Phone         string
	EmailVerified bool
	// IsActive is cleared when an account is deactivated; tokens minted for a
	// deactivated account are treated as revoked.
	IsActive bool
	// OTPBlockedUntil, when set and in the future, blocks all OTP issuance
	// for this user (flood lockout).
	OTPBlockedUntil *time.Time
	LastLoginAt     *time.Time
	LoginCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OTPBlocked reports whether the user is under an OTP flood lockout at now.
func (u *User) OTPBlocked(now time.Time) bool {
	return u.OTPBlockedUntil != nil && now.Before(*u.OTPBlockedUntil)
}
