package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"vehicle-rental-platform/authcore/internal/authn"
	"vehicle-rental-platform/authcore/internal/emailverify"
	evdomain "vehicle-rental-platform/authcore/internal/emailverify/domain"
	"vehicle-rental-platform/authcore/internal/otp"
	otpdomain "vehicle-rental-platform/authcore/internal/otp/domain"
	revdomain "vehicle-rental-platform/authcore/internal/revocation/domain"
	"vehicle-rental-platform/authcore/internal/security"
	"vehicle-rental-platform/authcore/internal/session"
	sessdomain "vehicle-rental-platform/authcore/internal/session/domain"
	userdomain "vehicle-rental-platform/authcore/internal/user/domain"
	"vehicle-rental-platform/authcore/internal/validation"
)

// In-memory fakes. They satisfy the consumer interfaces of every sub-service
// so the flows can be exercised end to end without a database.

type memUsers struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
}

func newMemUsers() *memUsers { return &memUsers{users: make(map[string]*userdomain.User)} }

func (m *memUsers) Create(_ context.Context, u *userdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) SetEmailVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.EmailVerified = true
	}
	return nil
}

func (m *memUsers) SetOTPBlockedUntil(_ context.Context, id string, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.OTPBlockedUntil = until
	}
	return nil
}

func (m *memUsers) RecordLogin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		now := time.Now().UTC()
		u.LastLoginAt = &now
		u.LoginCount++
	}
	return nil
}

func (m *memUsers) setActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsActive = active
	}
}

type memOTPs struct {
	mu   sync.Mutex
	otps map[string]*otpdomain.LoginOTP
}

func newMemOTPs() *memOTPs { return &memOTPs{otps: make(map[string]*otpdomain.LoginOTP)} }

func (m *memOTPs) Create(_ context.Context, o *otpdomain.LoginOTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range m.otps {
		if e.UserID == o.UserID && !e.Consumed() && !e.Expired(now) {
			e.ExpiresAt = now
		}
	}
	cp := *o
	m.otps[o.ID] = &cp
	return nil
}

func (m *memOTPs) GetLatestByUser(_ context.Context, userID string) (*otpdomain.LoginOTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*otpdomain.LoginOTP
	for _, o := range m.otps {
		if o.UserID == userID {
			list = append(list, o)
		}
	}
	if len(list) == 0 {
		return nil, nil
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	cp := *list[0]
	return &cp, nil
}

func (m *memOTPs) IncrementAttempts(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.otps[id]
	o.Attempts++
	return o.Attempts, nil
}

func (m *memOTPs) SetBlockedUntil(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps[id].BlockedUntil = &until
	return nil
}

func (m *memOTPs) MarkConsumed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.otps[id]
	if o.ConsumedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	o.ConsumedAt = &now
	return true, nil
}

func (m *memOTPs) CountIssuedSince(_ context.Context, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, o := range m.otps {
		if o.UserID == userID && !o.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memOTPs) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.otps {
		if o.ExpiresAt.Before(cutoff) {
			delete(m.otps, id)
			n++
		}
	}
	return n, nil
}

// age rewinds all OTP creation timestamps so the resend cooldown does not
// interfere with multi-login tests.
func (m *memOTPs) age(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.otps {
		o.CreatedAt = o.CreatedAt.Add(-d)
	}
}

type memVerifications struct {
	mu         sync.Mutex
	challenges map[string]*evdomain.Verification
}

func newMemVerifications() *memVerifications {
	return &memVerifications{challenges: make(map[string]*evdomain.Verification)}
}

func (m *memVerifications) Create(_ context.Context, v *evdomain.Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.challenges[v.ID] = &cp
	return nil
}

func (m *memVerifications) GetByToken(_ context.Context, token string) (*evdomain.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.challenges {
		if v.Token == token {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memVerifications) GetLatestByUser(_ context.Context, userID string) (*evdomain.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *evdomain.Verification
	for _, v := range m.challenges {
		if v.UserID == userID && (latest == nil || v.CreatedAt.After(latest.CreatedAt)) {
			latest = v
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memVerifications) MarkVerified(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.challenges[id]
	if v.VerifiedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	v.VerifiedAt = &now
	return true, nil
}

func (m *memVerifications) BumpSent(_ context.Context, id string, newExpiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.challenges[id]
	v.SentCount++
	v.LastSentAt = time.Now().UTC()
	v.ExpiresAt = newExpiry
	return nil
}

func (m *memVerifications) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*sessdomain.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*sessdomain.Session)}
}

func (m *memSessions) Create(_ context.Context, s *sessdomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id string) (*sessdomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memSessions) GetByRefreshJTI(_ context.Context, jti string) (*sessdomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.RefreshJTI == jti {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memSessions) ListActiveByUser(_ context.Context, userID string) ([]*sessdomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*sessdomain.Session
	now := time.Now()
	for _, s := range m.sessions {
		if s.UserID == userID && s.Usable(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessions) ListActiveByUserExcept(ctx context.Context, userID, exceptID string) ([]*sessdomain.Session, error) {
	all, err := m.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []*sessdomain.Session
	for _, s := range all {
		if s.ID != exceptID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessions) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.IsActive = false
	}
	return nil
}

func (m *memSessions) UpdateAccessJTI(_ context.Context, id, accessJTI string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.AccessJTI = accessJTI
	}
	return nil
}

func (m *memSessions) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

func (m *memSessions) DeleteInactiveBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func newMemRevocations() *memRevocations { return &memRevocations{revoked: make(map[string]bool)} }

func (m *memRevocations) Revoke(_ context.Context, rec *revdomain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[rec.JTI+"/"+rec.TokenType] = true
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, jti, tokenType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[jti+"/"+tokenType], nil
}

type captureMailer struct {
	mu            sync.Mutex
	verifications map[string]string // email -> token
	otps          map[string]string // email -> code
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{verifications: make(map[string]string), otps: make(map[string]string)}
}

func (c *captureMailer) SendVerification(_ context.Context, email, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifications[email] = token
	return nil
}

func (c *captureMailer) SendOTP(_ context.Context, email, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.otps[email] = code
	return nil
}

type harness struct {
	svc    *AuthService
	users  *memUsers
	otps   *memOTPs
	mailer *captureMailer
	tokens *security.TokenProvider
	auth   *authn.Authenticator
}

func newHarness() *harness {
	users := newMemUsers()
	otps := newMemOTPs()
	verifications := newMemVerifications()
	sessions := newMemSessions()
	revocations := newMemRevocations()
	mailer := newCaptureMailer()

	hasher := security.NewHasher()
	tokens := security.NewTokenProvider("unit-test-secret", 15*time.Minute, 168*time.Hour)
	auth := authn.NewAuthenticator(tokens, revocations, users)

	otpSvc := otp.NewService(otps, users, hasher, otp.Config{
		TTL:            5 * time.Minute,
		MaxAttempts:    3,
		BlockFor:       15 * time.Minute,
		ResendCooldown: 60 * time.Second,
		RequestLimit:   5,
		RequestBlock:   60 * time.Minute,
	})
	verifySvc := emailverify.NewService(verifications, users, 24*time.Hour, 60*time.Second)
	registry := session.NewRegistry(sessions, revocations, 168*time.Hour, nil)

	svc := NewAuthService(users, hasher, tokens, auth, otpSvc, verifySvc, registry, mailer, nil, nil)
	return &harness{svc: svc, users: users, otps: otps, mailer: mailer, tokens: tokens, auth: auth}
}

// registerVerified walks a user through register + email verification.
func (h *harness) registerVerified(t *testing.T, email, password, role string) *userdomain.User {
	t.Helper()
	ctx := context.Background()
	u, err := h.svc.Register(ctx, email, password, role, "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token := h.mailer.verifications[email]
	if token == "" {
		t.Fatal("no verification mail captured")
	}
	if err := h.svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	return u
}

// login walks both login steps and returns the token pair.
func (h *harness) login(t *testing.T, email, password string) *TokenPair {
	t.Helper()
	ctx := context.Background()
	h.otps.age(2 * time.Minute)
	if err := h.svc.LoginStep1(ctx, email, password, "127.0.0.1", "go-test"); err != nil {
		t.Fatalf("LoginStep1: %v", err)
	}
	code := h.mailer.otps[email]
	if code == "" {
		t.Fatal("no OTP mail captured")
	}
	pair, err := h.svc.LoginStep2(ctx, email, code, "go-test", "127.0.0.1")
	if err != nil {
		t.Fatalf("LoginStep2: %v", err)
	}
	return pair
}

func TestRegisterValidationAndDuplicates(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.svc.Register(ctx, "not-an-email", "password1", "customer", ""); !errors.Is(err, validation.ErrInvalidEmail) {
		t.Errorf("bad email = %v", err)
	}
	if _, err := h.svc.Register(ctx, "a@example.com", "short", "customer", ""); !errors.Is(err, validation.ErrWeakPassword) {
		t.Errorf("weak password = %v", err)
	}
	if _, err := h.svc.Register(ctx, "a@example.com", "password1", "admin", ""); !errors.Is(err, validation.ErrInvalidRole) {
		t.Errorf("bad role = %v", err)
	}
	if _, err := h.svc.Register(ctx, "a@example.com", "password1", "customer", "not-a-number"); !errors.Is(err, validation.ErrInvalidPhone) {
		t.Errorf("bad phone = %v", err)
	}

	u, err := h.svc.Register(ctx, "A@Example.com ", "password1", "customer", "+14155550123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "a@example.com" {
		t.Errorf("email not normalized: %q", u.Email)
	}
	if u.EmailVerified {
		t.Error("new account must start unverified")
	}
	if u.Phone != "+14155550123" {
		t.Errorf("phone = %q", u.Phone)
	}
	if !u.IsActive {
		t.Error("new account must start active")
	}

	if _, err := h.svc.Register(ctx, "a@example.com", "password1", "seller", ""); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("duplicate = %v", err)
	}
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.svc.Register(ctx, "a@example.com", "password1", "customer", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := h.svc.LoginStep1(ctx, "a@example.com", "password1", "127.0.0.1", "go-test"); !errors.Is(err, ErrEmailNotVerified) {
		t.Errorf("unverified login = %v, want ErrEmailNotVerified", err)
	}
}

func TestLoginWrongCredentials(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.registerVerified(t, "a@example.com", "password1", "customer")

	if err := h.svc.LoginStep1(ctx, "a@example.com", "wrong-pass1", "127.0.0.1", "go-test"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password = %v", err)
	}
	if err := h.svc.LoginStep1(ctx, "ghost@example.com", "password1", "127.0.0.1", "go-test"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email = %v", err)
	}
}

func TestFullLoginFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := h.registerVerified(t, "a@example.com", "password1", "customer")

	pair := h.login(t, "a@example.com", "password1")
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.SessionID == "" {
		t.Fatalf("pair = %+v", pair)
	}

	id, err := h.auth.AuthenticateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("access token rejected: %v", err)
	}
	if id.UserID != u.ID || id.Role != "customer" {
		t.Errorf("identity = %+v", id)
	}

	fresh, _ := h.users.GetByID(ctx, u.ID)
	if fresh.LoginCount != 1 || fresh.LastLoginAt == nil {
		t.Errorf("login not recorded: count=%d lastLoginAt=%v", fresh.LoginCount, fresh.LastLoginAt)
	}
}

func TestDeactivatedAccountCannotLogin(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := h.registerVerified(t, "a@example.com", "password1", "customer")
	h.users.setActive(u.ID, false)

	err := h.svc.LoginStep1(ctx, "a@example.com", "password1", "127.0.0.1", "go-test")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("deactivated login = %v, want ErrInvalidCredentials", err)
	}
}

func TestDeactivationRevokesIssuedTokens(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := h.registerVerified(t, "a@example.com", "password1", "customer")
	pair := h.login(t, "a@example.com", "password1")

	h.users.setActive(u.ID, false)
	if _, err := h.auth.AuthenticateAccess(ctx, pair.AccessToken, authn.WithUserRecheck()); !errors.Is(err, authn.ErrTokenRevoked) {
		t.Errorf("access token after deactivation = %v, want ErrTokenRevoked", err)
	}
}

func TestLoginStep2WrongCode(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.registerVerified(t, "a@example.com", "password1", "customer")

	if err := h.svc.LoginStep1(ctx, "a@example.com", "password1", "127.0.0.1", "go-test"); err != nil {
		t.Fatalf("LoginStep1: %v", err)
	}
	code := h.mailer.otps["a@example.com"]
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	if _, err := h.svc.LoginStep2(ctx, "a@example.com", wrong, "", ""); !errors.Is(err, otp.ErrCodeIncorrect) {
		t.Errorf("wrong code = %v", err)
	}
	if _, err := h.svc.LoginStep2(ctx, "a@example.com", code, "", ""); err != nil {
		t.Errorf("correct code after one miss = %v", err)
	}
}

func TestRefresh(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.registerVerified(t, "a@example.com", "password1", "customer")
	pair := h.login(t, "a@example.com", "password1")

	refreshed, err := h.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.AccessToken == pair.AccessToken {
		t.Error("refresh returned the same access token")
	}
	if refreshed.RefreshToken != pair.RefreshToken {
		t.Error("refresh token must not rotate")
	}
	if refreshed.SessionID != pair.SessionID {
		t.Error("refresh must stay on the same session")
	}

	if _, err := h.svc.Refresh(ctx, "garbage"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("garbage refresh = %v", err)
	}
	if _, err := h.svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("access token as refresh = %v", err)
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := h.registerVerified(t, "a@example.com", "password1", "customer")
	pair := h.login(t, "a@example.com", "password1")

	if err := h.svc.Logout(ctx, u.ID, pair.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := h.auth.AuthenticateAccess(ctx, pair.AccessToken); !errors.Is(err, authn.ErrTokenRevoked) {
		t.Errorf("access token after logout = %v, want ErrTokenRevoked", err)
	}
	if _, err := h.svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("refresh after logout = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestLogoutAllAcrossDevices(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := h.registerVerified(t, "a@example.com", "password1", "customer")

	pair1 := h.login(t, "a@example.com", "password1")
	pair2 := h.login(t, "a@example.com", "password1")

	n, err := h.svc.LogoutAll(ctx, u.ID)
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if n != 2 {
		t.Errorf("LogoutAll = %d, want 2", n)
	}
	for _, token := range []string{pair1.AccessToken, pair2.AccessToken} {
		if _, err := h.auth.AuthenticateAccess(ctx, token); !errors.Is(err, authn.ErrTokenRevoked) {
			t.Errorf("access token after logout-all = %v", err)
		}
	}
}

func TestResendVerificationDoesNotLeakAccounts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.svc.ResendVerification(ctx, "ghost@example.com"); err != nil {
		t.Errorf("unknown email resend = %v, want nil", err)
	}
}

func TestOTPStatus(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.registerVerified(t, "a@example.com", "password1", "customer")

	if err := h.svc.LoginStep1(ctx, "a@example.com", "password1", "127.0.0.1", "go-test"); err != nil {
		t.Fatalf("LoginStep1: %v", err)
	}
	st, err := h.svc.OTPStatus(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("OTPStatus: %v", err)
	}
	if st == nil || st.AttemptsLeft != 3 {
		t.Errorf("status = %+v", st)
	}

	if _, err := h.svc.OTPStatus(ctx, "ghost@example.com"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email status = %v", err)
	}
}
