package interceptors

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"vehicle-rental-platform/authcore/internal/authn"
	"vehicle-rental-platform/authcore/internal/authz"
	"vehicle-rental-platform/authcore/internal/security"
)

type allowAllRevocations struct{ revoked map[string]bool }

func (f *allowAllRevocations) IsRevoked(_ context.Context, jti, _ string) (bool, error) {
	return f.revoked[jti], nil
}

func testAuthenticator() (*authn.Authenticator, *security.TokenProvider, *allowAllRevocations) {
	tokens := security.NewTokenProvider("unit-test-secret", 15*time.Minute, 168*time.Hour)
	rev := &allowAllRevocations{revoked: make(map[string]bool)}
	return authn.NewAuthenticator(tokens, rev, nil), tokens, rev
}

func ctxWithAuth(token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(context.Background(), md)
}

func passthrough(ctx context.Context, _ interface{}) (interface{}, error) {
	return ctx, nil
}

func TestAuthUnaryAttachesIdentity(t *testing.T) {
	auth, tokens, _ := testAuthenticator()
	ic := AuthUnary(auth, nil)

	token, _, _, err := tokens.MintAccess("user-1", "a@example.com", "customer")
	if err != nil {
		t.Fatalf("MintAccess: %v", err)
	}

	resp, err := ic(ctxWithAuth(token), nil, &grpc.UnaryServerInfo{FullMethod: "/auth.v1.SessionService/List"}, passthrough)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	id, ok := IdentityFrom(resp.(context.Context))
	if !ok || id.UserID != "user-1" || id.Role != "customer" {
		t.Errorf("identity = %+v, ok=%v", id, ok)
	}
}

func TestAuthUnaryRejectsMissingToken(t *testing.T) {
	auth, _, _ := testAuthenticator()
	ic := AuthUnary(auth, nil)

	_, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"}, passthrough)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestAuthUnaryPublicMethodPasses(t *testing.T) {
	auth, _, _ := testAuthenticator()
	public := map[string]bool{"/auth.v1.AuthService/Login": true}
	ic := AuthUnary(auth, public)

	resp, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/auth.v1.AuthService/Login"}, passthrough)
	if err != nil {
		t.Fatalf("public method: %v", err)
	}
	if _, ok := IdentityFrom(resp.(context.Context)); ok {
		t.Error("public call without token must stay anonymous")
	}
}

func TestAuthUnaryRejectsRevokedToken(t *testing.T) {
	auth, tokens, rev := testAuthenticator()
	ic := AuthUnary(auth, nil)

	token, jti, _, err := tokens.MintAccess("user-1", "a@example.com", "customer")
	if err != nil {
		t.Fatalf("MintAccess: %v", err)
	}
	rev.revoked[jti] = true

	_, err = ic(ctxWithAuth(token), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"}, passthrough)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestAuthzUnary(t *testing.T) {
	engine, err := authz.NewEngine(context.Background(), "")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	caps := map[string]string{"/rental.v1.BookingService/Create": authz.CapBookingCreate}
	ic := AuthzUnary(engine, caps)

	customer := WithIdentity(context.Background(), &authn.Identity{UserID: "u1", Role: "customer"})
	if _, err := ic(customer, nil, &grpc.UnaryServerInfo{FullMethod: "/rental.v1.BookingService/Create"}, passthrough); err != nil {
		t.Errorf("customer booking: %v", err)
	}

	seller := WithIdentity(context.Background(), &authn.Identity{UserID: "u2", Role: "seller"})
	_, err = ic(seller, nil, &grpc.UnaryServerInfo{FullMethod: "/rental.v1.BookingService/Create"}, passthrough)
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("seller booking code = %v, want PermissionDenied", status.Code(err))
	}

	_, err = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/rental.v1.BookingService/Create"}, passthrough)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("anonymous booking code = %v, want Unauthenticated", status.Code(err))
	}

	if _, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Ungated"}, passthrough); err != nil {
		t.Errorf("ungated method: %v", err)
	}
}

func TestExtractBearer(t *testing.T) {
	testCases := []struct {
		name string
		val  string
		want string
	}{
		{"standard", "Bearer abc123", "abc123"},
		{"lowercase", "bearer abc123", "abc123"},
		{"extra spaces", "Bearer   abc123", "abc123"},
		{"missing prefix", "abc123", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"empty", "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := metadata.NewIncomingContext(context.Background(),
				metadata.Pairs("authorization", tc.val))
			if got := extractBearer(ctx); got != tc.want {
				t.Errorf("extractBearer(%q) = %q, want %q", tc.val, got, tc.want)
			}
		})
	}

	if got := extractBearer(context.Background()); got != "" {
		t.Errorf("extractBearer without metadata = %q", got)
	}
}
