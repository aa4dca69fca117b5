package handlers

import (
	"context"

	"google.golang.org/grpc"
)

// unary adapts a typed handler method to the shape grpc.MethodDesc needs:
// decode the request, then run it through the server's interceptor chain.
func unary[S, Req, Resp any](fullMethod string, call func(s S, ctx context.Context, req *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
			return call(srv.(S), ctx, r.(*Req))
		})
	}
}
