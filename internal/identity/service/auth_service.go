// Package service implements the account flows: register with email
// verification, two-step login (password then OTP), token refresh, and logout.
package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"vehicle-rental-platform/authcore/internal/audit"
	"vehicle-rental-platform/authcore/internal/authn"
	"vehicle-rental-platform/authcore/internal/emailverify"
	"vehicle-rental-platform/authcore/internal/otp"
	"vehicle-rental-platform/authcore/internal/security"
	"vehicle-rental-platform/authcore/internal/session"
	"vehicle-rental-platform/authcore/internal/telemetry"
	userdomain "vehicle-rental-platform/authcore/internal/user/domain"
	"vehicle-rental-platform/authcore/internal/validation"
)

// Sentinel errors; the transport layer maps them to status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrEmailNotVerified       = errors.New("email not verified")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	RecordLogin(ctx context.Context, id string) error
}

// Mailer delivers codes and verification links. Implementations must not
// block on slow upstreams longer than the request deadline.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendOTP(ctx context.Context, email, code string) error
}

// LogMailer writes outbound mail to the process log. Stands in for a real
// mail provider in development.
type LogMailer struct{}

func (LogMailer) SendVerification(_ context.Context, email, token string) error {
	log.Printf("mail: verification for %s token=%s", email, token)
	return nil
}

func (LogMailer) SendOTP(_ context.Context, email, code string) error {
	log.Printf("mail: otp for %s code=%s", email, code)
	return nil
}

// TokenPair is the outcome of a completed login or refresh.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	SessionID       string
}

// AuthService wires the account flows together.
type AuthService struct {
	users     UserRepo
	hasher    *security.Hasher
	tokens    *security.TokenProvider
	auth      *authn.Authenticator
	otps      *otp.Service
	verify    *emailverify.Service
	sessions  *session.Registry
	mailer    Mailer
	audit     audit.AuditLogger
	telemetry *telemetry.AsyncEmitter
}

// NewAuthService returns an AuthService. audit and telemetry may be nil.
func NewAuthService(
	users UserRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	auth *authn.Authenticator,
	otps *otp.Service,
	verify *emailverify.Service,
	sessions *session.Registry,
	mailer Mailer,
	auditLog audit.AuditLogger,
	emitter *telemetry.AsyncEmitter,
) *AuthService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		auth:      auth,
		otps:      otps,
		verify:    verify,
		sessions:  sessions,
		mailer:    mailer,
		audit:     auditLog,
		telemetry: emitter,
	}
}

// Register creates an unverified account and mails a verification token.
func (s *AuthService) Register(ctx context.Context, email, password, role, phone string) (*userdomain.User, error) {
	email = normalizeEmail(email)
	phone = strings.TrimSpace(phone)
	if err := validation.Email(email); err != nil {
		return nil, err
	}
	if err := validation.Password(password); err != nil {
		return nil, err
	}
	if err := validation.Role(role); err != nil {
		return nil, err
	}
	if err := validation.Phone(phone); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Phone:        phone,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	v, err := s.verify.Start(ctx, u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendVerification(ctx, u.Email, v.Token); err != nil {
		log.Printf("auth: verification mail to %s failed: %v", u.Email, err)
	}

	s.auditEvent(ctx, u.ID, audit.ActionRegister, "", map[string]any{"role": role})
	s.emit(ctx, telemetry.EventUserRegistered, u.ID, nil)
	return u, nil
}

// VerifyEmail completes email verification for the given token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.verify.Confirm(ctx, token)
	if err != nil {
		return err
	}
	s.auditEvent(ctx, userID, audit.ActionEmailVerified, "", nil)
	s.emit(ctx, telemetry.EventEmailVerified, userID, nil)
	return nil
}

// ResendVerification re-sends the verification email. Unknown addresses are
// reported as success so registration state cannot be probed.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if u == nil || u.EmailVerified {
		return nil
	}
	v, err := s.verify.Resend(ctx, u.ID)
	if err != nil {
		return err
	}
	return s.mailer.SendVerification(ctx, u.Email, v.Token)
}

// LoginStep1 checks the password and, on success, issues and mails an OTP.
// Wrong email and wrong password are indistinguishable to the caller.
func (s *AuthService) LoginStep1(ctx context.Context, email, password, ip, userAgent string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if u == nil || !u.IsActive {
		// Burn comparable time so missing accounts are not detectable by latency.
		_, _ = s.hasher.Hash(password)
		return ErrInvalidCredentials
	}

	match, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return err
	}
	if !match {
		s.auditEvent(ctx, u.ID, audit.ActionLoginFailed, "", nil)
		s.emit(ctx, telemetry.EventLoginFailed, u.ID, nil)
		return ErrInvalidCredentials
	}
	if !u.EmailVerified {
		return ErrEmailNotVerified
	}

	code, err := s.otps.Issue(ctx, u, ip, userAgent)
	if err != nil {
		if errors.Is(err, otp.ErrUserBlocked) {
			s.auditEvent(ctx, u.ID, audit.ActionOTPBlocked, "", nil)
			s.emit(ctx, telemetry.EventOTPBlocked, u.ID, nil)
		}
		return err
	}
	if err := s.mailer.SendOTP(ctx, u.Email, code); err != nil {
		return err
	}

	s.auditEvent(ctx, u.ID, audit.ActionLoginPassword, "", nil)
	s.auditEvent(ctx, u.ID, audit.ActionLoginOTPIssued, "", nil)
	s.emit(ctx, telemetry.EventOTPIssued, u.ID, nil)
	return nil
}

// LoginStep2 verifies the OTP and, on success, opens a session and returns
// the token pair.
func (s *AuthService) LoginStep2(ctx context.Context, email, code, userAgent, ip string) (*TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := s.otps.Verify(ctx, u.ID, code); err != nil {
		s.emit(ctx, telemetry.EventLoginFailed, u.ID, map[string]any{"stage": "otp"})
		return nil, err
	}

	refreshToken, refreshJTI, _, err := s.tokens.MintRefresh(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	accessToken, accessJTI, accessExp, err := s.tokens.MintAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, u.ID, refreshJTI, accessJTI, userAgent, ip)
	if err != nil {
		return nil, err
	}
	if err := s.users.RecordLogin(ctx, u.ID); err != nil {
		log.Printf("auth: recording login for %s failed: %v", u.ID, err)
	}

	s.auditEvent(ctx, u.ID, audit.ActionLoginComplete, sess.ID, map[string]any{"ip": ip})
	s.emit(ctx, telemetry.EventLoginSucceeded, u.ID, map[string]any{"session_id": sess.ID})
	return &TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: accessExp,
		SessionID:       sess.ID,
	}, nil
}

// ResendOTP issues a fresh code for a user mid-login.
func (s *AuthService) ResendOTP(ctx context.Context, email, ip, userAgent string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if u == nil {
		return ErrInvalidCredentials
	}
	code, err := s.otps.Issue(ctx, u, ip, userAgent)
	if err != nil {
		return err
	}
	if err := s.mailer.SendOTP(ctx, u.Email, code); err != nil {
		return err
	}
	s.emit(ctx, telemetry.EventOTPIssued, u.ID, map[string]any{"resend": true})
	return nil
}

// OTPStatus reports the state of the user's live login challenge.
func (s *AuthService) OTPStatus(ctx context.Context, email string) (*otp.Status, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	return s.otps.Status(ctx, u.ID)
}

// Refresh exchanges a refresh token for a fresh access token. The refresh
// token itself is not rotated; it stays bound to the session until logout.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	id, err := s.auth.AuthenticateRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, authn.ErrTokenInvalid) || errors.Is(err, authn.ErrTokenRevoked) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	sess, err := s.sessions.GetByRefreshJTI(ctx, id.JTI)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Usable(time.Now().UTC()) {
		return nil, ErrInvalidRefreshToken
	}

	accessToken, accessJTI, accessExp, err := s.tokens.MintAccess(id.UserID, id.Email, id.Role)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RotateAccessJTI(ctx, sess.ID, accessJTI); err != nil {
		return nil, err
	}

	s.auditEvent(ctx, id.UserID, audit.ActionTokenRefresh, sess.ID, nil)
	s.emit(ctx, telemetry.EventTokenRefreshed, id.UserID, map[string]any{"session_id": sess.ID})
	return &TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: accessExp,
		SessionID:       sess.ID,
	}, nil
}

// Logout invalidates one of the user's sessions and revokes its tokens.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if err := s.sessions.InvalidateOne(ctx, userID, sessionID); err != nil {
		return err
	}
	s.auditEvent(ctx, userID, audit.ActionLogout, sessionID, nil)
	s.emit(ctx, telemetry.EventLogout, userID, map[string]any{"session_id": sessionID})
	return nil
}

// LogoutAll invalidates every session of the user. Returns the count.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int, error) {
	n, err := s.sessions.InvalidateAll(ctx, userID)
	if err != nil {
		return n, err
	}
	s.auditEvent(ctx, userID, audit.ActionLogoutAll, "", map[string]any{"sessions": n})
	s.emit(ctx, telemetry.EventLogout, userID, map[string]any{"sessions": n})
	return n, nil
}

func (s *AuthService) auditEvent(ctx context.Context, actorID, action, resource string, detail map[string]any) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, actorID, action, resource, detail)
	}
}

func (s *AuthService) emit(ctx context.Context, eventType, userID string, detail map[string]any) {
	if s.telemetry != nil {
		s.telemetry.Emit(ctx, telemetry.Event{Type: eventType, UserID: userID, Detail: detail})
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
