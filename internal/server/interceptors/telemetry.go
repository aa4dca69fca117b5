package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"vehicle-rental-platform/authcore/internal/telemetry"
)

// TelemetryUnary returns a unary interceptor that emits one event per RPC:
// method, status code, duration, peer. Best-effort; a nil emitter no-ops.
// skipMethods lists full method names to not emit (e.g. health checks).
func TelemetryUnary(emitter *telemetry.AsyncEmitter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		emitter.Emit(ctx, telemetry.Event{
			Type:   "grpc_request",
			UserID: GetUserID(ctx),
			Detail: map[string]any{
				"full_method": info.FullMethod,
				"status_code": status.Code(err).String(),
				"duration_ms": time.Since(start).Milliseconds(),
				"client_ip":   ClientIP(ctx),
			},
		})
		return resp, err
	}
}
