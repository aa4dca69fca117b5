// Package validation holds input checks shared by the auth service and handlers.
package validation

import (
	"errors"
	"regexp"
	"sync"
	"unicode"
)

var (
	// ErrInvalidEmail is returned for malformed email addresses.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrWeakPassword is returned when a password fails the policy.
	ErrWeakPassword = errors.New("password must be at least 8 characters and contain a letter and a digit")
	// ErrInvalidRole is returned for roles outside the known set.
	ErrInvalidRole = errors.New("role must be customer or seller")
	// ErrInvalidPhone is returned for malformed phone numbers.
	ErrInvalidPhone = errors.New("invalid phone number")
)

// emailRe is compiled on first use. Validation is intentionally loose; the
// verification email is the real proof of ownership.
var emailRe = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
})

var otpRe = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^[0-9]{6}$`)
})

// phoneRe accepts E.164-style numbers with optional separators.
var phoneRe = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^\+?[0-9][0-9 ()-]{6,18}[0-9]$`)
})

// Email validates an email address.
func Email(email string) error {
	if len(email) > 254 || !emailRe().MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// Password enforces the password policy: at least 8 characters, at least one
// letter and one digit.
func Password(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}

// Phone validates a phone number. An empty phone is allowed; the field is
// optional at registration.
func Phone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phoneRe().MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}

// Role validates a user role.
func Role(role string) error {
	if role != "customer" && role != "seller" {
		return ErrInvalidRole
	}
	return nil
}

// OTPCode reports whether s looks like a 6-digit OTP code. Submissions that
// fail this never reach the database and never count as attempts.
func OTPCode(s string) bool {
	return otpRe().MatchString(s)
}
