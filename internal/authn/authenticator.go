// Package authn turns a bearer token into a trusted identity. Validation runs
// in fixed order: signature and expiry, token type, revocation, then optional
// live user checks. Any failure, including a revocation store outage, denies.
package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vehicle-rental-platform/authcore/internal/security"
	userdomain "vehicle-rental-platform/authcore/internal/user/domain"
)

var (
	// ErrTokenInvalid covers malformed, tampered, expired, and wrong-type
	// tokens. The security parse sentinel stays in the chain, so errors.Is
	// against security.ErrTokenExpired or security.ErrWrongTokenType tells
	// the cases apart.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenRevoked is returned when the token's jti is on the revocation list.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrUserGone is returned when the token's subject no longer exists.
	ErrUserGone = errors.New("user no longer exists")
	// ErrEmailNotVerified is returned by the user recheck for unverified accounts.
	ErrEmailNotVerified = errors.New("email not verified")
)

// RevocationChecker answers whether a token has been revoked. An error means
// the answer is unknown and the token must be rejected.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti, tokenType string) (bool, error)
}

// UserGetter loads users for the optional live recheck.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Identity is the result of successful authentication.
type Identity struct {
	UserID    string
	Email     string
	Role      string
	JTI       string
	TokenType string
	ExpiresAt time.Time
}

type options struct {
	skipRevocation bool
	recheckUser    bool
}

// Option tunes a single Authenticate call.
type Option func(*options)

// WithoutRevocationCheck skips the revocation lookup. Only for callers that
// explicitly accept stale-token risk on read-only paths.
func WithoutRevocationCheck() Option {
	return func(o *options) { o.skipRevocation = true }
}

// WithUserRecheck loads the subject and rejects tokens for deleted,
// deactivated, or unverified accounts; the live role replaces the embedded
// one. Costs one user read per call.
func WithUserRecheck() Option {
	return func(o *options) { o.recheckUser = true }
}

// Authenticator validates tokens against the shared secret, the revocation
// list, and optionally the live user record.
type Authenticator struct {
	tokens      *security.TokenProvider
	revocations RevocationChecker
	users       UserGetter
}

// NewAuthenticator returns an Authenticator. users may be nil if no caller
// uses WithUserRecheck.
func NewAuthenticator(tokens *security.TokenProvider, revocations RevocationChecker, users UserGetter) *Authenticator {
	return &Authenticator{tokens: tokens, revocations: revocations, users: users}
}

// AuthenticateAccess validates tokenString as an access token.
func (a *Authenticator) AuthenticateAccess(ctx context.Context, tokenString string, opts ...Option) (*Identity, error) {
	return a.authenticate(ctx, tokenString, security.TokenTypeAccess, opts...)
}

// AuthenticateRefresh validates tokenString as a refresh token.
func (a *Authenticator) AuthenticateRefresh(ctx context.Context, tokenString string, opts ...Option) (*Identity, error) {
	return a.authenticate(ctx, tokenString, security.TokenTypeRefresh, opts...)
}

func (a *Authenticator) authenticate(ctx context.Context, tokenString, wantType string, opts ...Option) (*Identity, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	claims, err := a.tokens.Parse(tokenString, wantType)
	if err != nil {
		// Keep the parse sentinel in the chain so callers can tell a
		// wrong-type or expired token from garbage.
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if !o.skipRevocation {
		revoked, err := a.revocations.IsRevoked(ctx, claims.ID, claims.TokenType)
		if err != nil {
			// Cannot prove the token is still good; deny.
			return nil, fmt.Errorf("revocation check: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	if o.recheckUser {
		if a.users == nil {
			return nil, errors.New("authn: user recheck requested without a user store")
		}
		u, err := a.users.GetByID(ctx, claims.Subject)
		if err != nil {
			return nil, fmt.Errorf("user recheck: %w", err)
		}
		if u == nil {
			return nil, ErrUserGone
		}
		if !u.IsActive {
			// Deactivated accounts are indistinguishable from revoked tokens.
			return nil, ErrTokenRevoked
		}
		if !u.EmailVerified {
			return nil, ErrEmailNotVerified
		}
		// Role may have changed since the token was minted; the live record wins.
		claims.Role = u.Role
	}

	return &Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		JTI:       claims.ID,
		TokenType: claims.TokenType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IsCustomer reports whether the identity carries the customer role.
func (id *Identity) IsCustomer() bool { return id.Role == userdomain.RoleCustomer }

// IsSeller reports whether the identity carries the seller role.
func (id *Identity) IsSeller() bool { return id.Role == userdomain.RoleSeller }
