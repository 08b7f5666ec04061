/*
Package authsdk is the Go client for the authflow authentication service.

# Client vs Session

  - Client: unauthenticated operations (register, login, health, OAuth URLs)
    and token verification for resource servers.
  - Session: operations on behalf of one signed-in user (me, MFA, logout).

A typical flow:

	client := authsdk.NewClient("https://auth.example.com")

	session, err := client.Login(ctx, "alice@example.com", "correct horse battery")
	if authsdk.IsCode(err, authsdk.ErrorCodeInvalidCredentials) {
		// wrong email or password; the server does not say which
	}

	setup, err := session.SetupMFA(ctx, authsdk.MFAMethodTOTP)
	// show setup.OTPAuthURL as a QR code, then
	res, err := session.VerifyMFA(ctx, code, authsdk.MFAMethodTOTP)
	// res.BackupCodes is only populated the first time MFA is enabled

	err = session.Logout(ctx) // revokes every token issued to the user

# Protecting handlers

Resource servers wrap their handlers with Client.Middleware. The policy is
explicit: httpx.PolicyRequire rejects requests without a valid token with
401, httpx.PolicyOptional lets them through without a user.

	mux.Handle("/profile", client.Middleware(httpx.PolicyRequire)(profileHandler))

	func profileHandler(w http.ResponseWriter, r *http.Request) {
		user, _ := authsdk.UserFromRequest(r)
		...
	}

# Errors

Every non-2xx response is returned as *APIError. Use IsCode to branch on the
error code. ErrorCodeTemporarilyUnavailable (503) carries RetryAfter and is the
only error worth retrying.
*/
package authsdk
