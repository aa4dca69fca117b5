package interceptors

import (
	"context"

	"google.golang.org/grpc/peer"

	"vehicle-rental-platform/authcore/internal/authn"
)

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id *authn.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the authenticated identity from ctx, or (nil, false)
// for unauthenticated contexts.
func IdentityFrom(ctx context.Context) (*authn.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*authn.Identity)
	return id, ok
}

// GetUserID returns the authenticated user id, or "" if unauthenticated.
func GetUserID(ctx context.Context) string {
	if id, ok := IdentityFrom(ctx); ok {
		return id.UserID
	}
	return ""
}

// ClientIP returns the peer address for the request, or "" when unknown.
func ClientIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	return p.Addr.String()
}
