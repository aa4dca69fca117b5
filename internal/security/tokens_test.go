package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestProvider() *TokenProvider {
	return NewTokenProvider("unit-test-secret", 15*time.Minute, 168*time.Hour)
}

func TestMintAccessRoundTrip(t *testing.T) {
	p := newTestProvider()

	token, jti, expiresAt, err := p.MintAccess("user-1", "a@example.com", "customer")
	if err != nil {
		t.Fatalf("MintAccess: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatal("MintAccess returned empty token or jti")
	}
	if time.Until(expiresAt) > 15*time.Minute+time.Second {
		t.Errorf("expiresAt too far in the future: %v", expiresAt)
	}

	claims, err := p.Parse(token, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
	if claims.Email != "a@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Role != "customer" {
		t.Errorf("Role = %q", claims.Role)
	}
	if claims.ID != jti {
		t.Errorf("jti = %q, want %q", claims.ID, jti)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("TokenType = %q", claims.TokenType)
	}
}

func TestParseRejectsWrongType(t *testing.T) {
	p := newTestProvider()

	refresh, _, _, err := p.MintRefresh("user-1", "a@example.com", "seller")
	if err != nil {
		t.Fatalf("MintRefresh: %v", err)
	}

	if _, err := p.Parse(refresh, TokenTypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("Parse(refresh as access) = %v, want ErrWrongTokenType", err)
	}
	if _, err := p.Parse(refresh, TokenTypeRefresh); err != nil {
		t.Errorf("Parse(refresh as refresh) = %v, want nil", err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	p := newTestProvider()

	token, _, _, err := p.MintAccess("user-1", "a@example.com", "customer")
	if err != nil {
		t.Fatalf("MintAccess: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := p.Parse(tampered, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Parse(tampered) = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	p := newTestProvider()
	other := NewTokenProvider("a-different-secret", 15*time.Minute, 168*time.Hour)

	token, _, _, err := p.MintAccess("user-1", "a@example.com", "customer")
	if err != nil {
		t.Fatalf("MintAccess: %v", err)
	}
	if _, err := other.Parse(token, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Parse with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestParseExpiredWithinLeeway(t *testing.T) {
	// A token expired 30s ago is still inside the 60s leeway.
	p := NewTokenProvider("unit-test-secret", -30*time.Second, 168*time.Hour)

	token, _, _, err := p.MintAccess("user-1", "a@example.com", "customer")
	if err != nil {
		t.Fatalf("MintAccess: %v", err)
	}
	if _, err := p.Parse(token, TokenTypeAccess); err != nil {
		t.Errorf("Parse within leeway = %v, want nil", err)
	}
}

func TestParseExpiredBeyondLeeway(t *testing.T) {
	p := NewTokenProvider("unit-test-secret", -5*time.Minute, 168*time.Hour)

	token, _, _, err := p.MintAccess("user-1", "a@example.com", "customer")
	if err != nil {
		t.Fatalf("MintAccess: %v", err)
	}
	_, err = p.Parse(token, TokenTypeAccess)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Parse beyond leeway = %v, want ErrTokenExpired", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Error("expired must not read as malformed")
	}
}

func TestMintedJTIsAreUnique(t *testing.T) {
	p := newTestProvider()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		_, jti, _, err := p.MintAccess("user-1", "a@example.com", "customer")
		if err != nil {
			t.Fatalf("MintAccess: %v", err)
		}
		if seen[jti] {
			t.Fatalf("duplicate jti %q", jti)
		}
		seen[jti] = true
	}
}

func TestNewTokenProviderPanicsOnEmptySecret(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewTokenProvider with empty secret should panic")
		}
	}()
	NewTokenProvider("", time.Minute, time.Hour)
}
