package handlers

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"vehicle-rental-platform/authcore/internal/identity/service"
	"vehicle-rental-platform/authcore/internal/server/interceptors"
)

// AuthServiceName is the fully qualified gRPC service name for account flows.
const AuthServiceName = "authcore.v1.AuthService"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Phone    string `json:"phone,omitempty"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	SessionID string `json:"session_id"`
}

type LogoutAllResponse struct {
	SessionsRevoked int `json:"sessions_revoked"`
}

type TokenPairResponse struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	AccessExpiresAt int64  `json:"access_expires_at"`
	SessionID       string `json:"session_id"`
}

type OTPStatusResponse struct {
	Active       bool  `json:"active"`
	AttemptsLeft int   `json:"attempts_left,omitempty"`
	BlockedUntil int64 `json:"blocked_until,omitempty"`
	ExpiresAt    int64 `json:"expires_at,omitempty"`
}

type Empty struct{}

// AuthHandler exposes the account flows over gRPC.
type AuthHandler struct {
	svc *service.AuthService
}

// NewAuthHandler returns an AuthHandler backed by svc.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	u, err := h.svc.Register(ctx, req.Email, req.Password, req.Role, req.Phone)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &RegisterResponse{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

func (h *AuthHandler) VerifyEmail(ctx context.Context, req *VerifyEmailRequest) (*Empty, error) {
	if err := h.svc.VerifyEmail(ctx, req.Token); err != nil {
		return nil, statusFromError(err)
	}
	return &Empty{}, nil
}

func (h *AuthHandler) ResendVerification(ctx context.Context, req *EmailRequest) (*Empty, error) {
	if err := h.svc.ResendVerification(ctx, req.Email); err != nil {
		return nil, statusFromError(err)
	}
	return &Empty{}, nil
}

// Login is step one: password check, OTP delivery. The token pair comes from
// LoginOTP.
func (h *AuthHandler) Login(ctx context.Context, req *LoginRequest) (*Empty, error) {
	if err := h.svc.LoginStep1(ctx, req.Email, req.Password, interceptors.ClientIP(ctx), userAgent(ctx)); err != nil {
		return nil, statusFromError(err)
	}
	return &Empty{}, nil
}

// LoginOTP is step two: code check, session creation, token pair.
func (h *AuthHandler) LoginOTP(ctx context.Context, req *LoginOTPRequest) (*TokenPairResponse, error) {
	pair, err := h.svc.LoginStep2(ctx, req.Email, req.Code, userAgent(ctx), interceptors.ClientIP(ctx))
	if err != nil {
		return nil, statusFromError(err)
	}
	return tokenPairResponse(pair), nil
}

func (h *AuthHandler) ResendOTP(ctx context.Context, req *EmailRequest) (*Empty, error) {
	if err := h.svc.ResendOTP(ctx, req.Email, interceptors.ClientIP(ctx), userAgent(ctx)); err != nil {
		return nil, statusFromError(err)
	}
	return &Empty{}, nil
}

func (h *AuthHandler) OTPStatus(ctx context.Context, req *EmailRequest) (*OTPStatusResponse, error) {
	st, err := h.svc.OTPStatus(ctx, req.Email)
	if err != nil {
		return nil, statusFromError(err)
	}
	if st == nil {
		return &OTPStatusResponse{}, nil
	}
	resp := &OTPStatusResponse{
		Active:       true,
		AttemptsLeft: st.AttemptsLeft,
		ExpiresAt:    st.ExpiresAt.Unix(),
	}
	if st.BlockedUntil != nil {
		resp.BlockedUntil = st.BlockedUntil.Unix()
	}
	return resp, nil
}

func (h *AuthHandler) Refresh(ctx context.Context, req *RefreshRequest) (*TokenPairResponse, error) {
	pair, err := h.svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, statusFromError(err)
	}
	return tokenPairResponse(pair), nil
}

func (h *AuthHandler) Logout(ctx context.Context, req *LogoutRequest) (*Empty, error) {
	if err := h.svc.Logout(ctx, interceptors.GetUserID(ctx), req.SessionID); err != nil {
		return nil, statusFromError(err)
	}
	return &Empty{}, nil
}

func (h *AuthHandler) LogoutAll(ctx context.Context, _ *Empty) (*LogoutAllResponse, error) {
	n, err := h.svc.LogoutAll(ctx, interceptors.GetUserID(ctx))
	if err != nil {
		return nil, statusFromError(err)
	}
	return &LogoutAllResponse{SessionsRevoked: n}, nil
}

func tokenPairResponse(pair *service.TokenPair) *TokenPairResponse {
	return &TokenPairResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt.Unix(),
		SessionID:       pair.SessionID,
	}
}

// userAgent pulls the client's user-agent from the request metadata.
func userAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get("user-agent"); len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

// AuthServiceServer is the full method surface of the auth service.
type AuthServiceServer interface {
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	VerifyEmail(ctx context.Context, req *VerifyEmailRequest) (*Empty, error)
	ResendVerification(ctx context.Context, req *EmailRequest) (*Empty, error)
	Login(ctx context.Context, req *LoginRequest) (*Empty, error)
	LoginOTP(ctx context.Context, req *LoginOTPRequest) (*TokenPairResponse, error)
	ResendOTP(ctx context.Context, req *EmailRequest) (*Empty, error)
	OTPStatus(ctx context.Context, req *EmailRequest) (*OTPStatusResponse, error)
	Refresh(ctx context.Context, req *RefreshRequest) (*TokenPairResponse, error)
	Logout(ctx context.Context, req *LogoutRequest) (*Empty, error)
	LogoutAll(ctx context.Context, req *Empty) (*LogoutAllResponse, error)
}

// AuthServiceDesc is the hand-maintained service descriptor. Method names must
// stay in sync with the interceptor method tables in the server package.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary("/"+AuthServiceName+"/Register", AuthServiceServer.Register)},
		{MethodName: "VerifyEmail", Handler: unary("/"+AuthServiceName+"/VerifyEmail", AuthServiceServer.VerifyEmail)},
		{MethodName: "ResendVerification", Handler: unary("/"+AuthServiceName+"/ResendVerification", AuthServiceServer.ResendVerification)},
		{MethodName: "Login", Handler: unary("/"+AuthServiceName+"/Login", AuthServiceServer.Login)},
		{MethodName: "LoginOTP", Handler: unary("/"+AuthServiceName+"/LoginOTP", AuthServiceServer.LoginOTP)},
		{MethodName: "ResendOTP", Handler: unary("/"+AuthServiceName+"/ResendOTP", AuthServiceServer.ResendOTP)},
		{MethodName: "OTPStatus", Handler: unary("/"+AuthServiceName+"/OTPStatus", AuthServiceServer.OTPStatus)},
		{MethodName: "Refresh", Handler: unary("/"+AuthServiceName+"/Refresh", AuthServiceServer.Refresh)},
		{MethodName: "Logout", Handler: unary("/"+AuthServiceName+"/Logout", AuthServiceServer.Logout)},
		{MethodName: "LogoutAll", Handler: unary("/"+AuthServiceName+"/LogoutAll", AuthServiceServer.LogoutAll)},
	},
	Metadata: "authcore/v1/auth",
}
