package authz

import (
	"context"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), "")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestDefaultPolicy(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	customer := Principal{ID: "u1", Role: "customer", EmailVerified: true}
	seller := Principal{ID: "u2", Role: "seller", EmailVerified: true}
	unverified := Principal{ID: "u3", Role: "customer", EmailVerified: false}
	anonymous := Principal{}

	testCases := []struct {
		name       string
		p          Principal
		capability string
		want       bool
	}{
		{"customer authenticated", customer, CapAuthenticated, true},
		{"anonymous denied", anonymous, CapAuthenticated, false},
		{"customer reads sessions", customer, CapSessionRead, true},
		{"seller revokes sessions", seller, CapSessionRevoke, true},
		{"customer books", customer, CapBookingCreate, true},
		{"seller cannot book", seller, CapBookingCreate, false},
		{"unverified customer cannot book", unverified, CapBookingCreate, false},
		{"seller manages listings", seller, CapListingManage, true},
		{"customer cannot manage listings", customer, CapListingManage, false},
		{"unknown capability denied", customer, "does.not.exist", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Allow(ctx, tc.p, tc.capability)
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if got != tc.want {
				t.Errorf("Allow(%+v, %q) = %v, want %v", tc.p, tc.capability, got, tc.want)
			}
		})
	}
}

func TestNewEngineRejectsBadPolicy(t *testing.T) {
	if _, err := NewEngine(context.Background(), "package authcore.access\nallow if {"); err == nil {
		t.Fatal("NewEngine with broken rego should fail")
	}
}

func TestReload(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	permissive := `package authcore.access

default allow = false

allow if {
	input.principal.id != ""
}
`
	if err := e.Reload(ctx, permissive); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	got, err := e.Allow(ctx, Principal{ID: "u1"}, "anything.at.all")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !got {
		t.Error("reloaded policy should allow any capability for identified principals")
	}

	if err := e.Reload(ctx, "package authcore.access\nallow if {"); err == nil {
		t.Error("Reload with broken rego should fail and keep the old policy")
	}
	got, err = e.Allow(ctx, Principal{ID: "u1"}, "anything.at.all")
	if err != nil || !got {
		t.Errorf("old policy should survive failed reload: %v %v", got, err)
	}
}

func TestHealthCheck(t *testing.T) {
	e := newTestEngine(t)
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}
