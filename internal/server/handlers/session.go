package handlers

import (
	"context"

	"google.golang.org/grpc"

	"vehicle-rental-platform/authcore/internal/server/interceptors"
	"vehicle-rental-platform/authcore/internal/session"
)

// SessionServiceName is the fully qualified gRPC service name for device
// session management.
const SessionServiceName = "authcore.v1.SessionService"

type SessionInfo struct {
	ID         string `json:"id"`
	UserAgent  string `json:"user_agent,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	LastUsedAt int64  `json:"last_used_at"`
	ExpiresAt  int64  `json:"expires_at"`
}

type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

type RevokeSessionRequest struct {
	SessionID string `json:"session_id"`
}

type RevokeOthersRequest struct {
	KeepSessionID string `json:"keep_session_id"`
}

type RevokeAllResponse struct {
	SessionsRevoked int `json:"sessions_revoked"`
}

// SessionHandler exposes the caller's own sessions. The authorization
// interceptor has already checked the session capabilities by the time these
// run, so ownership is the only remaining check and the registry does it.
type SessionHandler struct {
	registry *session.Registry
}

// NewSessionHandler returns a SessionHandler backed by registry.
func NewSessionHandler(registry *session.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

func (h *SessionHandler) List(ctx context.Context, _ *Empty) (*ListSessionsResponse, error) {
	sessions, err := h.registry.ListActive(ctx, interceptors.GetUserID(ctx))
	if err != nil {
		return nil, statusFromError(err)
	}
	resp := &ListSessionsResponse{Sessions: make([]SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, SessionInfo{
			ID:         s.ID,
			UserAgent:  s.UserAgent,
			IPAddress:  s.IPAddress,
			CreatedAt:  s.CreatedAt.Unix(),
			LastUsedAt: s.LastUsedAt.Unix(),
			ExpiresAt:  s.ExpiresAt.Unix(),
		})
	}
	return resp, nil
}

func (h *SessionHandler) Revoke(ctx context.Context, req *RevokeSessionRequest) (*Empty, error) {
	if err := h.registry.InvalidateOne(ctx, interceptors.GetUserID(ctx), req.SessionID); err != nil {
		return nil, statusFromError(err)
	}
	return &Empty{}, nil
}

// RevokeOthers logs the caller out of every device except the named session.
func (h *SessionHandler) RevokeOthers(ctx context.Context, req *RevokeOthersRequest) (*RevokeAllResponse, error) {
	n, err := h.registry.InvalidateOthers(ctx, interceptors.GetUserID(ctx), req.KeepSessionID)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &RevokeAllResponse{SessionsRevoked: n}, nil
}

func (h *SessionHandler) RevokeAll(ctx context.Context, _ *Empty) (*RevokeAllResponse, error) {
	n, err := h.registry.InvalidateAll(ctx, interceptors.GetUserID(ctx))
	if err != nil {
		return nil, statusFromError(err)
	}
	return &RevokeAllResponse{SessionsRevoked: n}, nil
}

// SessionServiceServer is the full method surface of the session service.
type SessionServiceServer interface {
	List(ctx context.Context, req *Empty) (*ListSessionsResponse, error)
	Revoke(ctx context.Context, req *RevokeSessionRequest) (*Empty, error)
	RevokeOthers(ctx context.Context, req *RevokeOthersRequest) (*RevokeAllResponse, error)
	RevokeAll(ctx context.Context, req *Empty) (*RevokeAllResponse, error)
}

// SessionServiceDesc is the hand-maintained service descriptor.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unary("/"+SessionServiceName+"/List", SessionServiceServer.List)},
		{MethodName: "Revoke", Handler: unary("/"+SessionServiceName+"/Revoke", SessionServiceServer.Revoke)},
		{MethodName: "RevokeOthers", Handler: unary("/"+SessionServiceName+"/RevokeOthers", SessionServiceServer.RevokeOthers)},
		{MethodName: "RevokeAll", Handler: unary("/"+SessionServiceName+"/RevokeAll", SessionServiceServer.RevokeAll)},
	},
	Metadata: "authcore/v1/session",
}
