package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminator carried in claims. A refresh token must never be
// accepted where an access token is expected, and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// clockLeeway absorbs clock skew between services validating each other's tokens.
const clockLeeway = 60 * time.Second

var (
	// ErrInvalidToken is returned when a token is malformed or tampered with.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when an otherwise valid token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenType is returned when a structurally valid token carries the wrong token_type.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims is the JWT payload shared by access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
}

// TokenProvider mints and parses HS256 JWTs with a shared symmetric secret.
type TokenProvider struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given secret.
// The secret is validated at config load; an empty secret here panics rather
// than silently minting unverifiable tokens.
func NewTokenProvider(secret string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	if secret == "" {
		panic("security: empty JWT secret")
	}
	return &TokenProvider{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// MintAccess issues a short-lived access JWT for the given user.
// Returns the token string, its jti, and expiration time.
func (p *TokenProvider) MintAccess(userID, email, role string) (token string, jti string, expiresAt time.Time, err error) {
	return p.mint(userID, email, role, TokenTypeAccess, p.accessTTL)
}

// MintRefresh issues a long-lived refresh JWT for the given user.
// Caller stores the jti on the session so logout can revoke it.
func (p *TokenProvider) MintRefresh(userID, email, role string) (token string, jti string, expiresAt time.Time, err error) {
	return p.mint(userID, email, role, TokenTypeRefresh, p.refreshTTL)
}

func (p *TokenProvider) mint(userID, email, role, tokenType string, ttl time.Duration) (string, string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:     email,
		Role:      role,
		TokenType: tokenType,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// Parse verifies signature and expiry (with leeway) and checks that the token
// carries wantType. Returns ErrTokenExpired for an expired token,
// ErrWrongTokenType when the only problem is the token_type claim, and
// ErrInvalidToken for everything else.
func (p *TokenProvider) Parse(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	}, jwt.WithLeeway(clockLeeway))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// generateJTI returns a 32-char hex token identifier from crypto/rand.
func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
