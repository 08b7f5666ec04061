package authsdk

import (
	"context"
	"net/http"
)

// SetupMFA starts (or restarts) a challenge for method. Any earlier pending
// challenge for the same method is superseded.
func (s *Session) SetupMFA(ctx context.Context, method string) (*MFASetupResponse, error) {
	var out MFASetupResponse
	req := MFASetupRequest{Method: method}
	if err := s.client.doJSON(ctx, http.MethodPost, "/api/auth/mfa/setup", s.Token(), req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyMFA completes the pending challenge for method.
func (s *Session) VerifyMFA(ctx context.Context, code, method string) (*MFAVerifyResponse, error) {
	var out MFAVerifyResponse
	req := MFAVerifyRequest{Code: code, Method: method}
	if err := s.client.doJSON(ctx, http.MethodPost, "/api/auth/mfa/verify", s.Token(), req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user.MFAEnabled = out.MFAEnabled
	s.mu.Unlock()
	return &out, nil
}

// DisableMFA turns MFA off using a current TOTP code or a backup code.
func (s *Session) DisableMFA(ctx context.Context, code string) error {
	req := MFADisableRequest{Code: code}
	if err := s.client.doJSON(ctx, http.MethodPost, "/api/auth/mfa/disable", s.Token(), req, nil, http.StatusNoContent); err != nil {
		return err
	}
	s.mu.Lock()
	s.user.MFAEnabled = false
	s.mu.Unlock()
	return nil
}
