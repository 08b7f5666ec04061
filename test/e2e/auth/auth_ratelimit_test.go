package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authflow/pkg/authsdk"
)

// TestRateLimitLoginEndpoint verifies that /api/auth/login is rate limited.
// This endpoint has strict limits (5 req/min) to prevent brute force attacks.
func TestRateLimitLoginEndpoint(t *testing.T) {
	baseURL := setupAuthContainerWithDefaultRateLimits(t)
	client := authsdk.NewClient(baseURL)
	ctx := t.Context()

	// Make 6 requests rapidly and expect the 6th to be rate limited
	var lastErr error
	for i := range 6 {
		_, err := client.Login(ctx, "victim@example.com", "wrong password")
		if i < 5 {
			assertCode(t, err, authsdk.ErrorCodeInvalidCredentials, "Should not be rate limited yet")
		} else {
			lastErr = err
		}
	}

	var apiErr *authsdk.APIError
	require.ErrorAs(t, lastErr, &apiErr)
	require.Equal(t, authsdk.ErrorCodeRateLimited, apiErr.Code)
	require.Positive(t, apiErr.RetryAfter)

	// Limits are keyed by address and email, so another account still works.
	_, err := client.Login(ctx, "someone-else@example.com", "wrong password")
	assertCode(t, err, authsdk.ErrorCodeInvalidCredentials, "Different email should have its own bucket")

	t.Logf("Successfully rate limited after 5 requests to /api/auth/login")
}

// TestRateLimitMFAVerify verifies that code guessing on /mfa/verify is
// limited per user.
func TestRateLimitMFAVerify(t *testing.T) {
	baseURL := setupAuthContainerWithDefaultRateLimits(t)
	client := authsdk.NewClient(baseURL)
	ctx := t.Context()

	session := registerUser(t, client, "ratelimit")
	_, err := session.SetupMFA(ctx, authsdk.MFAMethodEmail)
	require.NoError(t, err)

	var lastErr error
	for range 6 {
		_, lastErr = session.VerifyMFA(ctx, "000000x", authsdk.MFAMethodEmail)
	}
	assertCode(t, lastErr, authsdk.ErrorCodeRateLimited, "6th guess should be rate limited")
}
