package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestEmail(t *testing.T) {
	valid := []string{"a@b.co", "user+tag@example.com", "first.last@sub.domain.org"}
	for _, e := range valid {
		if err := Email(e); err != nil {
			t.Errorf("Email(%q) = %v, want nil", e, err)
		}
	}

	invalid := []string{"", "no-at-sign", "@example.com", "a@b", "two@@example.com", "a b@example.com",
		strings.Repeat("x", 250) + "@e.com"}
	for _, e := range invalid {
		if !errors.Is(Email(e), ErrInvalidEmail) {
			t.Errorf("Email(%q) = nil, want ErrInvalidEmail", e)
		}
	}
}

func TestPassword(t *testing.T) {
	valid := []string{"abcdefg1", "p4ssword!", "longerpassword9"}
	for _, p := range valid {
		if err := Password(p); err != nil {
			t.Errorf("Password(%q) = %v, want nil", p, err)
		}
	}

	invalid := []string{"", "short1", "alllettersonly", "123456789", "!!!!!!!!"}
	for _, p := range invalid {
		if !errors.Is(Password(p), ErrWeakPassword) {
			t.Errorf("Password(%q) = nil, want ErrWeakPassword", p)
		}
	}
}

func TestPhone(t *testing.T) {
	valid := []string{"", "+14155550123", "0171 2345678", "020 7946-0958"}
	for _, p := range valid {
		if err := Phone(p); err != nil {
			t.Errorf("Phone(%q) = %v, want nil", p, err)
		}
	}

	invalid := []string{"12345", "phone", "+", "++14155550123", "123456789012345678901"}
	for _, p := range invalid {
		if !errors.Is(Phone(p), ErrInvalidPhone) {
			t.Errorf("Phone(%q) = nil, want ErrInvalidPhone", p)
		}
	}
}

func TestRole(t *testing.T) {
	if err := Role("customer"); err != nil {
		t.Errorf("Role(customer) = %v", err)
	}
	if err := Role("seller"); err != nil {
		t.Errorf("Role(seller) = %v", err)
	}
	for _, r := range []string{"", "admin", "Customer", "SELLER"} {
		if !errors.Is(Role(r), ErrInvalidRole) {
			t.Errorf("Role(%q) = nil, want ErrInvalidRole", r)
		}
	}
}

func TestOTPCode(t *testing.T) {
	if !OTPCode("123456") {
		t.Error("OTPCode(123456) = false")
	}
	for _, s := range []string{"", "12345", "1234567", "12345a", "12 456", "-12345"} {
		if OTPCode(s) {
			t.Errorf("OTPCode(%q) = true", s)
		}
	}
}
