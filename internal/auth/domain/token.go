package domain

import "time"

// IssuedToken is a signed session token and its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}
