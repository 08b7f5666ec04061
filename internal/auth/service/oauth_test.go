package service

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOAuthRedirectURL(t *testing.T) {
	s := &OAuthService{Providers: OAuthProviders(map[string]string{
		"github":    "gh-client",
		"GOOGLE":    "g-client",
		"myspace":   "ignored",
		"microsoft": "",
	})}

	t.Run("percent-encodes the redirect uri", func(t *testing.T) {
		redirect := "https://app.example.com/cb?x=1&y=a b"
		raw, err := s.RedirectURL("github", redirect)
		require.NoError(t, err)

		require.True(t, strings.HasPrefix(raw, "https://github.com/login/oauth/authorize?"))
		require.Contains(t, raw, "redirect_uri=https%3A%2F%2Fapp.example.com%2Fcb%3Fx%3D1%26y%3Da+b")
		require.NotContains(t, raw, "&y=")

		u, err := url.Parse(raw)
		require.NoError(t, err)
		q := u.Query()
		require.Equal(t, redirect, q.Get("redirect_uri"))
		require.Equal(t, "gh-client", q.Get("client_id"))
		require.Equal(t, "code", q.Get("response_type"))
		require.Equal(t, "read:user user:email", q.Get("scope"))
		require.NotEmpty(t, q.Get("state"))
	})

	t.Run("provider names are case-insensitive", func(t *testing.T) {
		_, err := s.RedirectURL("Google", "https://app.example.com/cb")
		require.NoError(t, err)
	})

	t.Run("unregistered providers", func(t *testing.T) {
		for _, p := range []string{"myspace", "microsoft", ""} {
			_, err := s.RedirectURL(p, "https://app.example.com/cb")
			require.ErrorIs(t, err, ErrUnsupportedOAuthProvider, p)
		}
	})

	t.Run("redirect must be absolute http(s)", func(t *testing.T) {
		for _, r := range []string{"", "/cb", "javascript:alert(1)", "ftp://example.com/cb", "https://"} {
			_, err := s.RedirectURL("github", r)
			require.ErrorIs(t, err, ErrInvalidRedirectURI, r)
		}
	})
}

func TestOAuthAllowedRedirects(t *testing.T) {
	s := &OAuthService{
		Providers:        OAuthProviders(map[string]string{"github": "gh-client"}),
		AllowedRedirects: []string{"https://app.example.com/"},
	}

	_, err := s.RedirectURL("github", "https://app.example.com/auth/cb")
	require.NoError(t, err)

	_, err = s.RedirectURL("github", "https://evil.example.net/cb")
	require.ErrorIs(t, err, ErrInvalidRedirectURI)
}
