package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authflow/internal/auth/authtest"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

const password = "correct horse battery"

type response struct {
	*http.Response
	body []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func (r response) errorCode(t *testing.T) string {
	t.Helper()
	var body httpx.ErrorBody
	r.decode(t, &body)
	return body.Error
}

var noRedirect = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
}

func do(t *testing.T, env *authtest.Env, method, path, token string, body any) response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, env.URL()+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := noRedirect.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{Response: resp, body: raw}
}

func register(t *testing.T, env *authtest.Env, email string) authsdk.AuthResponse {
	t.Helper()
	resp := do(t, env, http.MethodPost, "/api/auth/register", "", authsdk.RegisterRequest{
		Email:       email,
		Password:    password,
		FirstName:   "Alice",
		PhoneNumber: "+61412345678",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.body))
	var out authsdk.AuthResponse
	resp.decode(t, &out)
	return out
}

func TestRegisterLoginMe(t *testing.T) {
	env := authtest.New(t, authtest.Options{})

	reg := register(t, env, "  Alice@Example.com ")
	require.NotEmpty(t, reg.Token)
	require.Equal(t, "alice@example.com", reg.User.Email)
	require.Equal(t, "user", reg.User.Role)
	require.False(t, reg.User.MFAEnabled)
	require.True(t, reg.ExpiresAt.After(time.Now()))

	login := do(t, env, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{
		Email:    "ALICE@example.com",
		Password: password,
	})
	require.Equal(t, http.StatusOK, login.StatusCode)
	var auth authsdk.AuthResponse
	login.decode(t, &auth)
	require.Equal(t, reg.User.ID, auth.User.ID)

	me := do(t, env, http.MethodGet, "/api/auth/me", auth.Token, nil)
	require.Equal(t, http.StatusOK, me.StatusCode)
	var out authsdk.MeResponse
	me.decode(t, &out)
	require.Equal(t, reg.User.ID, out.User.ID)
	require.Equal(t, "Alice", out.User.FirstName)

	require.Equal(t, "nosniff", me.Header.Get("X-Content-Type-Options"))
	require.NotEmpty(t, me.Header.Get("X-Request-ID"))
}

func TestRegisterRejections(t *testing.T) {
	env := authtest.New(t, authtest.Options{})
	register(t, env, "taken@example.com")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed json", `{"email":`, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest},
		{"two objects", `{"email":"a@example.com"}{}`, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest},
		{"invalid email", authsdk.RegisterRequest{Email: "not-an-email", Password: password}, http.StatusBadRequest, authsdk.ErrorCodeInvalidEmail},
		{"display name", authsdk.RegisterRequest{Email: "Bob <bob@example.com>", Password: password}, http.StatusBadRequest, authsdk.ErrorCodeInvalidEmail},
		{"short password", authsdk.RegisterRequest{Email: "bob@example.com", Password: "short"}, http.StatusBadRequest, authsdk.ErrorCodeWeakPassword},
		{"duplicate", authsdk.RegisterRequest{Email: "TAKEN@example.com", Password: password}, http.StatusConflict, authsdk.ErrorCodeDuplicateEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, env, http.MethodPost, "/api/auth/register", "", tt.body)
			require.Equal(t, tt.status, resp.StatusCode, string(resp.body))
			require.Equal(t, tt.code, resp.errorCode(t))
		})
	}
}

func TestLoginFailuresLookAlike(t *testing.T) {
	env := authtest.New(t, authtest.Options{})
	register(t, env, "alice@example.com")

	wrongPassword := do(t, env, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{
		Email: "alice@example.com", Password: "wrong password",
	})
	unknownUser := do(t, env, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{
		Email: "nobody@example.com", Password: password,
	})
	badEmail := do(t, env, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{
		Email: "nobody", Password: password,
	})

	for _, resp := range []response{wrongPassword, unknownUser, badEmail} {
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, string(wrongPassword.body), string(resp.body))
	}
	require.Equal(t, authsdk.ErrorCodeInvalidCredentials, wrongPassword.errorCode(t))
}

func TestBearerRoutesRejectBadTokens(t *testing.T) {
	env := authtest.New(t, authtest.Options{})
	auth := register(t, env, "alice@example.com")

	tests := map[string]string{
		"missing":  "",
		"garbage":  "not-a-token",
		"tampered": auth.Token + "x",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			for _, path := range []string{"/api/auth/me", "/api/auth/mfa/setup"} {
				method := http.MethodPost
				if path == "/api/auth/me" {
					method = http.MethodGet
				}
				resp := do(t, env, method, path, token, authsdk.MFASetupRequest{Method: "email"})
				require.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
				require.Equal(t, authsdk.ErrorCodeInvalidToken, resp.errorCode(t))
				require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := authtest.New(t, authtest.Options{})
	first := register(t, env, "alice@example.com")

	login := do(t, env, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{
		Email: "alice@example.com", Password: password,
	})
	var second authsdk.AuthResponse
	login.decode(t, &second)

	resp := do(t, env, http.MethodPost, "/api/auth/logout", first.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, env, http.MethodPost, "/api/auth/logout", first.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Logout revokes every session of the user.
	for _, tok := range []string{first.Token, second.Token} {
		resp = do(t, env, http.MethodGet, "/api/auth/me", tok, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp = do(t, env, http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, env, http.MethodPost, "/api/auth/logout", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMFAEmailFlow(t *testing.T) {
	env := authtest.New(t, authtest.Options{})
	auth := register(t, env, "alice@example.com")

	setup := do(t, env, http.MethodPost, "/api/auth/mfa/setup", auth.Token, authsdk.MFASetupRequest{Method: "email"})
	require.Equal(t, http.StatusOK, setup.StatusCode, string(setup.body))
	var payload authsdk.MFASetupResponse
	setup.decode(t, &payload)
	require.Equal(t, "email", payload.Delivery)
	require.Equal(t, "a***e@example.com", payload.Destination)
	require.Empty(t, payload.Secret)
	require.NotContains(t, string(setup.body), env.Outbox.LastCode(t))

	code := env.Outbox.LastCode(t)
	verify := do(t, env, http.MethodPost, "/api/auth/mfa/verify", auth.Token, authsdk.MFAVerifyRequest{Code: code, Method: "email"})
	require.Equal(t, http.StatusOK, verify.StatusCode, string(verify.body))
	var result authsdk.MFAVerifyResponse
	verify.decode(t, &result)
	require.True(t, result.MFAEnabled)
	require.Len(t, result.BackupCodes, 10)

	again := do(t, env, http.MethodPost, "/api/auth/mfa/verify", auth.Token, authsdk.MFAVerifyRequest{Code: code, Method: "email"})
	require.Equal(t, http.StatusBadRequest, again.StatusCode)
	require.Equal(t, authsdk.ErrorCodeMFAAlreadyConsumed, again.errorCode(t))

	me := do(t, env, http.MethodGet, "/api/auth/me", auth.Token, nil)
	var out authsdk.MeResponse
	me.decode(t, &out)
	require.True(t, out.User.MFAEnabled)

	disable := do(t, env, http.MethodPost, "/api/auth/mfa/disable", auth.Token, authsdk.MFADisableRequest{Code: result.BackupCodes[0]})
	require.Equal(t, http.StatusNoContent, disable.StatusCode, string(disable.body))

	disable = do(t, env, http.MethodPost, "/api/auth/mfa/disable", auth.Token, authsdk.MFADisableRequest{Code: result.BackupCodes[1]})
	require.Equal(t, http.StatusBadRequest, disable.StatusCode)
	require.Equal(t, authsdk.ErrorCodeMFANotEnabled, disable.errorCode(t))
}

func TestMFAErrors(t *testing.T) {
	env := authtest.New(t, authtest.Options{})
	auth := register(t, env, "alice@example.com")

	resp := do(t, env, http.MethodPost, "/api/auth/mfa/setup", auth.Token, authsdk.MFASetupRequest{Method: "carrier-pigeon"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, authsdk.ErrorCodeUnsupportedMethod, resp.errorCode(t))

	resp = do(t, env, http.MethodPost, "/api/auth/mfa/verify", auth.Token, authsdk.MFAVerifyRequest{Code: "123456", Method: "sms"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, authsdk.ErrorCodeNoActiveChallenge, resp.errorCode(t))

	resp = do(t, env, http.MethodPost, "/api/auth/mfa/setup", auth.Token, authsdk.MFASetupRequest{Method: "sms"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	code := env.Outbox.LastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	resp = do(t, env, http.MethodPost, "/api/auth/mfa/verify", auth.Token, authsdk.MFAVerifyRequest{Code: wrong, Method: "sms"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, authsdk.ErrorCodeInvalidCode, resp.errorCode(t))

	// A wrong guess leaves the challenge usable.
	resp = do(t, env, http.MethodPost, "/api/auth/mfa/verify", auth.Token, authsdk.MFAVerifyRequest{Code: code, Method: "sms"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOAuthRedirect(t *testing.T) {
	env := authtest.New(t, authtest.Options{AllowedRedirects: []string{"https://app.example/"}})

	callback := "https://app.example/cb?next=/home&x=a b"
	resp := do(t, env, http.MethodGet, "/api/auth/oauth/github?redirect_uri="+url.QueryEscape(callback), "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "github.com", loc.Host)
	q := loc.Query()
	require.Equal(t, "gh-client", q.Get("client_id"))
	require.Equal(t, callback, q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.NotEmpty(t, q.Get("state"))

	resp = do(t, env, http.MethodGet, "/api/auth/oauth/myspace?redirect_uri="+url.QueryEscape(callback), "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, authsdk.ErrorCodeUnsupportedProvider, resp.errorCode(t))

	for _, bad := range []string{"", "/relative", "javascript:alert(1)", "https://evil.example/cb"} {
		resp = do(t, env, http.MethodGet, "/api/auth/oauth/google?redirect_uri="+url.QueryEscape(bad), "", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
		require.Equal(t, authsdk.ErrorCodeInvalidRedirectURI, resp.errorCode(t))
	}
}

func TestUpstreamFailureIs503(t *testing.T) {
	env := authtest.New(t, authtest.Options{})
	auth := register(t, env, "alice@example.com")

	require.NoError(t, env.Store.Close())

	login := do(t, env, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{
		Email: "alice@example.com", Password: password,
	})
	require.Equal(t, http.StatusServiceUnavailable, login.StatusCode)
	require.Equal(t, authsdk.ErrorCodeTemporarilyUnavailable, login.errorCode(t))
	require.Equal(t, "1", login.Header.Get("Retry-After"))

	me := do(t, env, http.MethodGet, "/api/auth/me", auth.Token, nil)
	require.Equal(t, http.StatusServiceUnavailable, me.StatusCode)

	ready := do(t, env, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, ready.StatusCode)
	var health authsdk.HealthResponse
	ready.decode(t, &health)
	require.Equal(t, "degraded", health.Status)
}

func TestRateLimitedLogin(t *testing.T) {
	limits := httpx.DefaultProfiles()
	limits.Strict = httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	env := authtest.New(t, authtest.Options{Limits: &limits})

	attempt := func(email string) response {
		return do(t, env, http.MethodPost, "/api/auth/login", "", authsdk.LoginRequest{Email: email, Password: "wrong password"})
	}

	require.Equal(t, http.StatusUnauthorized, attempt("alice@example.com").StatusCode)
	require.Equal(t, http.StatusUnauthorized, attempt("alice@example.com").StatusCode)

	limited := attempt("alice@example.com")
	require.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	require.Equal(t, authsdk.ErrorCodeRateLimited, limited.errorCode(t))
	require.NotEmpty(t, limited.Header.Get("Retry-After"))

	// The key includes the email, so another account is unaffected.
	require.Equal(t, http.StatusUnauthorized, attempt("bob@example.com").StatusCode)
}

func TestSystemEndpoints(t *testing.T) {
	env := authtest.New(t, authtest.Options{})

	live := do(t, env, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, live.StatusCode)

	ready := do(t, env, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, ready.StatusCode)
	var health authsdk.HealthResponse
	ready.decode(t, &health)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Database)
	require.Empty(t, health.Checks.Challenges)

	docs := do(t, env, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, docs.StatusCode)
	require.Contains(t, string(docs.body), "/api/auth/login")

	// Go 1.22 patterns reject the wrong method.
	resp := do(t, env, http.MethodGet, "/api/auth/login", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
