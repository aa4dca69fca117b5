package interceptors

import (
	"context"
	"testing"

	"vehicle-rental-platform/authcore/internal/authn"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()

	if _, ok := IdentityFrom(ctx); ok {
		t.Error("empty context should carry no identity")
	}
	if got := GetUserID(ctx); got != "" {
		t.Errorf("GetUserID on empty context = %q", got)
	}

	id := &authn.Identity{UserID: "user-1", Email: "a@example.com", Role: "seller"}
	ctx = WithIdentity(ctx, id)

	got, ok := IdentityFrom(ctx)
	if !ok || got != id {
		t.Errorf("IdentityFrom = %+v, ok=%v", got, ok)
	}
	if GetUserID(ctx) != "user-1" {
		t.Errorf("GetUserID = %q", GetUserID(ctx))
	}
}

func TestClientIPWithoutPeer(t *testing.T) {
	if got := ClientIP(context.Background()); got != "" {
		t.Errorf("ClientIP = %q, want empty", got)
	}
}
