package domain

import (
	"strings"
	"time"
)

type MFAMethod string

const (
	MFAMethodTOTP  MFAMethod = "totp"
	MFAMethodEmail MFAMethod = "email"
	MFAMethodSMS   MFAMethod = "sms"
)

// ParseMFAMethod normalises s and reports whether it names a supported method.
func ParseMFAMethod(s string) (MFAMethod, bool) {
	m := MFAMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MFAMethodTOTP, MFAMethodEmail, MFAMethodSMS:
		return m, true
	}
	return "", false
}

// IsOTP reports whether the method delivers a one-time code out of band.
func (m MFAMethod) IsOTP() bool { return m == MFAMethodEmail || m == MFAMethodSMS }

// ChallengeState is derived from a challenge row and the current time.
type ChallengeState string

const (
	ChallengePending  ChallengeState = "pending"
	ChallengeConsumed ChallengeState = "consumed"
	ChallengeExpired  ChallengeState = "expired"
)

// MFAChallenge is the single pending-or-finished challenge for one
// (user, method) pair. Setup replaces it wholesale, which is what makes an
// older challenge unusable.
type MFAChallenge struct {
	ID         string // ULID, changes on every setup
	UserID     string
	Method     MFAMethod
	Secret     string // TOTP: base32 secret. email/sms: fingerprint of the code.
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// State evaluates expiry lazily. A consumed challenge stays consumed after
// its expiry passes.
func (c MFAChallenge) State(now time.Time) ChallengeState {
	switch {
	case c.ConsumedAt != nil:
		return ChallengeConsumed
	case !now.Before(c.ExpiresAt):
		return ChallengeExpired
	default:
		return ChallengePending
	}
}

// SetupPayload is the method-specific result of starting a challenge.
type SetupPayload struct {
	Method    MFAMethod
	ExpiresAt time.Time

	// TOTP
	Secret     string
	OTPAuthURL string
	Issuer     string
	Account    string

	// email / sms
	Delivery    string
	Destination string // masked
}

// VerifyResult reports a successful verification.
type VerifyResult struct {
	Method      MFAMethod
	MFAEnabled  bool
	BackupCodes []string // only on first enablement
}
