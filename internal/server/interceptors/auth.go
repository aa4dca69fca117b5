package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"vehicle-rental-platform/authcore/internal/authn"
	"vehicle-rental-platform/authcore/internal/authz"
)

const bearerPrefix = "bearer "

// AuthUnary returns a unary interceptor that validates the Bearer access
// token from gRPC metadata and attaches the identity to the context.
// publicMethods lists full method names reachable without a token (register,
// login, refresh, health).
func AuthUnary(auth *authn.Authenticator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		id, err := auth.AuthenticateAccess(ctx, token)
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		return handler(WithIdentity(ctx, id), req)
	}
}

// AuthzUnary returns a unary interceptor that checks the method's capability
// against the policy engine. Methods absent from methodCapabilities pass
// through. Access tokens are only minted after email verification, so an
// authenticated principal is treated as verified.
func AuthzUnary(engine *authz.Engine, methodCapabilities map[string]string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		capability, gated := methodCapabilities[info.FullMethod]
		if !gated {
			return handler(ctx, req)
		}
		id, ok := IdentityFrom(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		allowed, err := engine.Allow(ctx, authz.Principal{
			ID:            id.UserID,
			Role:          id.Role,
			EmailVerified: true,
		}, capability)
		if err != nil {
			return nil, status.Error(codes.Internal, "authorization check failed")
		}
		if !allowed {
			return nil, status.Error(codes.PermissionDenied, "permission denied")
		}
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing
// or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
