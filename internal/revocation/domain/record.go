// Package domain holds the token revocation record.
package domain

import "time"

// Record marks one token (by jti and type) as revoked. ExpiresAt mirrors the
// token's own expiry so the row can be garbage collected once the token
// would have died anyway.
type Record struct {
	JTI       string
	TokenType string
	UserID    string
	RevokedAt time.Time
	ExpiresAt time.Time
}
