package authsdk

import "time"

// MFA method identifiers accepted by /api/auth/mfa/setup and /verify.
const (
	MFAMethodTOTP  = "totp"
	MFAMethodEmail = "email"
	MFAMethodSMS   = "sms"
)

// User is the public view of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        string `json:"role,omitempty"`
	TenantID    string `json:"tenant_id,omitempty"`
	MFAEnabled  bool   `json:"mfa_enabled"`
}

// PrincipalID lets User travel through httpx.AuthnMiddleware.
func (u User) PrincipalID() string { return u.ID }

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// MeResponse is returned by GET /api/auth/me.
type MeResponse struct {
	User User `json:"user"`
}

// MFASetupRequest is the body of POST /api/auth/mfa/setup.
type MFASetupRequest struct {
	Method string `json:"method"`
}

// MFASetupResponse is the method-specific setup payload. TOTP fills Secret,
// OTPAuthURL, Issuer and Account; email and sms fill Delivery and a masked
// Destination.
type MFASetupResponse struct {
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`

	Secret     string `json:"secret,omitempty"`
	OTPAuthURL string `json:"otpauth_url,omitempty"`
	Issuer     string `json:"issuer,omitempty"`
	Account    string `json:"account,omitempty"`

	Delivery    string `json:"delivery,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// MFAVerifyRequest is the body of POST /api/auth/mfa/verify.
type MFAVerifyRequest struct {
	Code   string `json:"code"`
	Method string `json:"method"`
}

// MFAVerifyResponse reports the outcome of a successful verification.
// BackupCodes is only present the first time MFA is enabled.
type MFAVerifyResponse struct {
	Method      string   `json:"method"`
	MFAEnabled  bool     `json:"mfa_enabled"`
	BackupCodes []string `json:"backup_codes,omitempty"`
}

// MFADisableRequest is the body of POST /api/auth/mfa/disable. Code is a
// current TOTP code or an unused backup code.
type MFADisableRequest struct {
	Code string `json:"code"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency checked by /readyz.
type HealthChecks struct {
	Database   string `json:"database"`
	Challenges string `json:"challenges,omitempty"`
}
