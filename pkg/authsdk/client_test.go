package authsdk_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authflow/internal/auth/authtest"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

const password = "correct horse battery"

func newClient(t *testing.T) (*authsdk.Client, *authtest.Env) {
	t.Helper()
	env := authtest.New(t, authtest.Options{})
	return authsdk.NewClient(env.URL() + "/"), env
}

func TestClientSessionLifecycle(t *testing.T) {
	ctx := t.Context()
	client, _ := newClient(t)

	sess, err := client.Register(ctx, authsdk.RegisterRequest{Email: "alice@example.com", Password: password})
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token())
	require.Equal(t, "alice@example.com", sess.User().Email)

	_, err = client.Register(ctx, authsdk.RegisterRequest{Email: "alice@example.com", Password: password})
	require.True(t, authsdk.IsCode(err, authsdk.ErrorCodeDuplicateEmail), "got %v", err)

	_, err = client.Login(ctx, "alice@example.com", "wrong password")
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeInvalidCredentials, apiErr.Code)

	other, err := client.Login(ctx, "alice@example.com", password)
	require.NoError(t, err)

	me, err := other.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, sess.User().ID, me.ID)

	require.NoError(t, sess.Logout(ctx))
	require.Empty(t, sess.Token())

	_, err = other.Me(ctx)
	require.True(t, authsdk.IsCode(err, authsdk.ErrorCodeInvalidToken), "got %v", err)

	// A second logout with the stale token still succeeds.
	require.NoError(t, client.NewSessionFromToken(other.Token()).Logout(ctx))
}

func TestClientMFA(t *testing.T) {
	ctx := t.Context()
	client, _ := newClient(t)

	sess, err := client.Register(ctx, authsdk.RegisterRequest{Email: "alice@example.com", Password: password})
	require.NoError(t, err)

	setup, err := sess.SetupMFA(ctx, authsdk.MFAMethodTOTP)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.Equal(t, authtest.Issuer, setup.Issuer)
	require.Equal(t, "alice@example.com", setup.Account)

	otpURL, err := url.Parse(setup.OTPAuthURL)
	require.NoError(t, err)
	require.Equal(t, "otpauth", otpURL.Scheme)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	res, err := sess.VerifyMFA(ctx, code, authsdk.MFAMethodTOTP)
	require.NoError(t, err)
	require.True(t, res.MFAEnabled)
	require.Len(t, res.BackupCodes, 10)
	require.True(t, sess.User().MFAEnabled)

	err = sess.DisableMFA(ctx, "not-a-code")
	require.True(t, authsdk.IsCode(err, authsdk.ErrorCodeInvalidCode), "got %v", err)

	require.NoError(t, sess.DisableMFA(ctx, res.BackupCodes[3]))
	require.False(t, sess.User().MFAEnabled)

	_, err = sess.SetupMFA(ctx, "fax")
	require.True(t, authsdk.IsCode(err, authsdk.ErrorCodeUnsupportedMethod), "got %v", err)
}

func TestClientHealth(t *testing.T) {
	ctx := t.Context()
	client, _ := newClient(t)

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks.Database)
}

func TestOAuthRedirectURL(t *testing.T) {
	client := authsdk.NewClient("https://auth.example")
	got := client.OAuthRedirectURL("github", "https://app.example/cb?a=1&b=2")

	u, err := url.Parse(got)
	require.NoError(t, err)
	require.Equal(t, "/api/auth/oauth/github", u.Path)
	require.Equal(t, "https://app.example/cb?a=1&b=2", u.Query().Get("redirect_uri"))
}

func TestMiddleware(t *testing.T) {
	ctx := t.Context()
	client, env := newClient(t)

	sess, err := client.Register(ctx, authsdk.RegisterRequest{Email: "alice@example.com", Password: password})
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := authsdk.UserFromRequest(r)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(user.Email))
	})

	call := func(mw httpx.Middleware, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequestWithContext(ctx, http.MethodGet, "/app", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, req)
		return rec
	}

	t.Run("require", func(t *testing.T) {
		mw := client.Middleware(httpx.PolicyRequire)

		rec := call(mw, sess.Token())
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "alice@example.com", rec.Body.String())

		require.Equal(t, http.StatusUnauthorized, call(mw, "").Code)
		require.Equal(t, http.StatusUnauthorized, call(mw, "garbage").Code)
	})

	t.Run("optional", func(t *testing.T) {
		mw := client.Middleware(httpx.PolicyOptional)

		require.Equal(t, http.StatusOK, call(mw, sess.Token()).Code)
		require.Equal(t, http.StatusNoContent, call(mw, "").Code)
		require.Equal(t, http.StatusNoContent, call(mw, "garbage").Code)
	})

	t.Run("auth service down", func(t *testing.T) {
		require.NoError(t, env.Store.Close())
		rec := call(client.Middleware(httpx.PolicyRequire), sess.Token())
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
