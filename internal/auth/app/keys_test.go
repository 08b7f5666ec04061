package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeKey(t *testing.T, pemKey []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, pemKey, 0o600))
	return path
}

func signAndVerify(t *testing.T, m *jwtx.Manager) {
	t.Helper()
	claims := jwtx.NewAccessClaims(jwtx.AccessParams{Subject: "user-1"}, m.Issuer(), time.Minute, time.Now())
	tok, err := m.Sign(claims)
	require.NoError(t, err)
	got, err := m.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
}

func TestInitSigningKeys(t *testing.T) {
	edPEM, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	t.Run("hs256 secret", func(t *testing.T) {
		cfg := Config{Issuer: "test", Env: "prod", SigningSecret: "0123456789abcdef0123456789abcdef"}
		m, err := InitSigningKeys(cfg, discardLogger())
		require.NoError(t, err)
		signAndVerify(t, m)
	})

	t.Run("short secret rejected", func(t *testing.T) {
		cfg := Config{Issuer: "test", Env: "prod", SigningSecret: "short"}
		_, err := InitSigningKeys(cfg, discardLogger())
		require.Error(t, err)
	})

	t.Run("pem file with stable kid", func(t *testing.T) {
		cfg := Config{Issuer: "test", Env: "prod", SigningKeyFile: writeKey(t, edPEM)}
		a, err := InitSigningKeys(cfg, discardLogger())
		require.NoError(t, err)
		b, err := InitSigningKeys(cfg, discardLogger())
		require.NoError(t, err)
		require.Equal(t, a.KID(), b.KID())
		signAndVerify(t, a)
	})

	t.Run("both sources rejected", func(t *testing.T) {
		cfg := Config{
			Issuer:         "test",
			SigningSecret:  "0123456789abcdef0123456789abcdef",
			SigningKeyFile: writeKey(t, edPEM),
		}
		_, err := InitSigningKeys(cfg, discardLogger())
		require.Error(t, err)
	})

	t.Run("missing key outside dev", func(t *testing.T) {
		_, err := InitSigningKeys(Config{Issuer: "test", Env: "prod"}, discardLogger())
		require.Error(t, err)
	})

	t.Run("ephemeral key in dev", func(t *testing.T) {
		m, err := InitSigningKeys(Config{Issuer: "test", Env: "dev"}, discardLogger())
		require.NoError(t, err)
		signAndVerify(t, m)
	})

	t.Run("previous key stays trusted", func(t *testing.T) {
		oldPath := writeKey(t, edPEM)
		old, err := InitSigningKeys(Config{Issuer: "test", Env: "prod", SigningKeyFile: oldPath}, discardLogger())
		require.NoError(t, err)
		tok, err := old.Sign(jwtx.NewAccessClaims(jwtx.AccessParams{Subject: "user-1"}, "test", time.Minute, time.Now()))
		require.NoError(t, err)

		esPEM, err := cryptox.GenerateES256Key()
		require.NoError(t, err)
		cfg := Config{
			Issuer:          "test",
			Env:             "prod",
			SigningKeyFile:  writeKey(t, esPEM),
			PreviousKeyFile: oldPath,
		}
		current, err := InitSigningKeys(cfg, discardLogger())
		require.NoError(t, err)

		_, err = current.Verify(tok)
		require.NoError(t, err)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL", "90m")
	t.Setenv("AUTH_MFA_CHALLENGE_TTL", "5")
	t.Setenv("AUTH_OAUTH_ALLOWED_REDIRECTS", "https://app.example/, ,https://other.example/cb")
	t.Setenv("AUTH_OAUTH_GITHUB_CLIENT_ID", "gh-client")
	t.Setenv("AUTH_DATABASE_DRIVER", "Postgres")
	t.Setenv("ENV", "prod")
	t.Setenv("AUTH_NOTIFY_REVEAL_BODY", "true")

	cfg := LoadConfig()
	require.Equal(t, 90*time.Minute, cfg.TokenTTL)
	require.Equal(t, 5*time.Minute, cfg.MFAChallengeTTL)
	require.Equal(t, []string{"https://app.example/", "https://other.example/cb"}, cfg.OAuthAllowedRedirects)
	require.Equal(t, "gh-client", cfg.OAuthClientIDs["github"])
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, "authflow", cfg.Issuer)
	require.Equal(t, 5*time.Second, cfg.OperationTimeout)
	require.False(t, cfg.RevealNotificationBody)
}
