package http

import (
	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
)

func toSDKUser(u domain.User) authsdk.User {
	return authsdk.User{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
		TenantID:    u.TenantID,
		MFAEnabled:  u.MFAEnabled(),
	}
}

func toAuthResponse(t domain.IssuedToken, u domain.User) authsdk.AuthResponse {
	return authsdk.AuthResponse{Token: t.Token, ExpiresAt: t.ExpiresAt, User: toSDKUser(u)}
}

func toSetupResponse(p domain.SetupPayload) authsdk.MFASetupResponse {
	return authsdk.MFASetupResponse{
		Method:      string(p.Method),
		ExpiresAt:   p.ExpiresAt,
		Secret:      p.Secret,
		OTPAuthURL:  p.OTPAuthURL,
		Issuer:      p.Issuer,
		Account:     p.Account,
		Delivery:    p.Delivery,
		Destination: p.Destination,
	}
}

func toVerifyResponse(r domain.VerifyResult) authsdk.MFAVerifyResponse {
	return authsdk.MFAVerifyResponse{
		Method:      string(r.Method),
		MFAEnabled:  r.MFAEnabled,
		BackupCodes: r.BackupCodes,
	}
}
