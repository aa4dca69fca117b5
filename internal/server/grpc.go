// Package server assembles the gRPC server: interceptor chain, OTel stats
// handler, and the standard health service.
package server

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"vehicle-rental-platform/authcore/internal/authn"
	"vehicle-rental-platform/authcore/internal/authz"
	"vehicle-rental-platform/authcore/internal/identity/service"
	"vehicle-rental-platform/authcore/internal/server/handlers"
	"vehicle-rental-platform/authcore/internal/server/interceptors"
	"vehicle-rental-platform/authcore/internal/session"
	"vehicle-rental-platform/authcore/internal/telemetry"
)

// PublicMethods are reachable without a Bearer token: the pre-auth flows and
// health checks.
var PublicMethods = map[string]bool{
	"/authcore.v1.AuthService/Register":           true,
	"/authcore.v1.AuthService/VerifyEmail":        true,
	"/authcore.v1.AuthService/ResendVerification": true,
	"/authcore.v1.AuthService/Login":              true,
	"/authcore.v1.AuthService/LoginOTP":           true,
	"/authcore.v1.AuthService/ResendOTP":          true,
	"/authcore.v1.AuthService/OTPStatus":          true,
	"/authcore.v1.AuthService/Refresh":            true,
	"/grpc.health.v1.Health/Check":                true,
	"/grpc.health.v1.Health/Watch":                true,
}

// MethodCapabilities maps gated methods to the capability the policy engine
// must allow.
var MethodCapabilities = map[string]string{
	"/authcore.v1.SessionService/List":         authz.CapSessionRead,
	"/authcore.v1.SessionService/Revoke":       authz.CapSessionRevoke,
	"/authcore.v1.SessionService/RevokeOthers": authz.CapSessionRevoke,
	"/authcore.v1.SessionService/RevokeAll":    authz.CapSessionRevoke,
}

// SkipTelemetryMethods are not worth an event per call.
var SkipTelemetryMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// Deps holds the server's cross-cutting dependencies and the services to
// expose. Nil services are simply not registered, which keeps tests small.
type Deps struct {
	Auth     *authn.Authenticator
	Authz    *authz.Engine
	Emitter  *telemetry.AsyncEmitter
	AuthSvc  *service.AuthService
	Sessions *session.Registry
	// DB, when set, drives the health service status.
	DB *sql.DB
}

// New builds the gRPC server with auth, authz, and telemetry interceptors and
// registers the services plus the standard health service. Returned health
// server starts SERVING; callers flip it on shutdown.
func New(deps Deps) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(deps.Auth, PublicMethods),
			interceptors.AuthzUnary(deps.Authz, MethodCapabilities),
			interceptors.TelemetryUnary(deps.Emitter, SkipTelemetryMethods),
		),
	)

	if deps.AuthSvc != nil {
		s.RegisterService(&handlers.AuthServiceDesc, handlers.NewAuthHandler(deps.AuthSvc))
	}
	if deps.Sessions != nil {
		s.RegisterService(&handlers.SessionServiceDesc, handlers.NewSessionHandler(deps.Sessions))
	}

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthSrv)

	return s, healthSrv
}

// CheckReadiness pings the database and the policy engine. Used at startup
// and by ops tooling; the health service reflects the result.
func CheckReadiness(ctx context.Context, deps Deps) error {
	if deps.DB != nil {
		if err := deps.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if deps.Authz != nil {
		if err := deps.Authz.HealthCheck(ctx); err != nil {
			return err
		}
	}
	return nil
}
