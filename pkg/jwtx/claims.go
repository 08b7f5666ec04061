package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the lifetime of a session token when none is configured.
const DefaultAccessTokenTTL = 24 * time.Hour

// Claims are the session-token claims. Epoch binds a token to the user's
// revocation epoch at the time it was minted; bumping the epoch invalidates
// every older token without a denylist.
type Claims struct {
	jwt.RegisteredClaims

	// Tenant the user belongs to, if any.
	TenantID string `json:"tid,omitempty"`

	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`

	// Revocation epoch.
	Epoch int64 `json:"epc"`
}

// AccessParams carries the per-user values embedded in a session token.
type AccessParams struct {
	Subject  string
	TenantID string
	Role     string
	Email    string
	Epoch    int64
}

// NewAccessClaims builds minimally-correct claims.
func NewAccessClaims(p AccessParams, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		TenantID: p.TenantID,
		Role:     p.Role,
		Email:    p.Email,
		Epoch:    p.Epoch,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
