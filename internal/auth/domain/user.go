package domain

import "time"

type User struct {
	ID          string
	Email       string // stored lower-cased
	FirstName   string
	LastName    string
	PhoneNumber string
	Role        string
	TenantID    string

	// TokenEpoch is bumped on logout; tokens carrying an older epoch are revoked.
	TokenEpoch int64

	MFAMethod    MFAMethod  // enrolled factor, empty when MFA is off
	MFASecret    *string    // TOTP secret (base32), only for MFAMethodTOTP
	MFAEnabledAt *time.Time // nullable
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) MFAEnabled() bool { return u.MFAEnabledAt != nil }

// PrincipalID lets User travel through httpx.AuthnMiddleware.
func (u User) PrincipalID() string { return u.ID }

// Profile holds the optional fields supplied at registration.
type Profile struct {
	FirstName   string
	LastName    string
	PhoneNumber string
}

// Credential is the password record for a user. It never leaves the
// credential layer.
type Credential struct {
	UserID       string
	PasswordHash string // PHC-encoded
	Algorithm    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const CredentialAlgorithmArgon2id = "argon2id"
