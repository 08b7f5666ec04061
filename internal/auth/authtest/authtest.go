// Package authtest runs the full HTTP stack against a throwaway sqlite
// database for handler and client tests.
package authtest

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpapi "github.com/aussiebroadwan/authflow/internal/auth/http"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
	"github.com/aussiebroadwan/authflow/pkg/notify"
)

const Issuer = "authflow-test"

// Outbox records every notification instead of delivering it.
type Outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (o *Outbox) Send(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// LastCode returns the one-time code in the most recent message.
func (o *Outbox) LastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs, "no message sent")
	code := codePattern.FindString(o.msgs[len(o.msgs)-1].Body)
	require.NotEmpty(t, code)
	return code
}

// Options tweak the test server.
type Options struct {
	// Limits defaults to values high enough that tests never trip them.
	Limits *httpx.Profiles
	// AllowedRedirects is passed to the OAuth service.
	AllowedRedirects []string
}

// Env is a running test server and the pieces behind it.
type Env struct {
	Server  *httptest.Server
	Router  *httpapi.Router
	Session *service.SessionService
	Store   *sqlite.Store
	Outbox  *Outbox
}

// URL returns the server base URL.
func (e *Env) URL() string { return e.Server.URL }

func relaxedLimits() httpx.Profiles {
	l := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	return httpx.Profiles{Strict: l, Moderate: l, Lenient: l, Public: l}
}

// New starts a server and registers its shutdown with t.Cleanup.
func New(t *testing.T, opts Options) *Env {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())

	signer, err := jwtx.NewSignerHS256("test-key", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	jm, err := jwtx.NewManager(signer, jwtx.Options{Issuer: Issuer})
	require.NoError(t, err)

	// Cheap parameters keep the suite fast.
	hasher := &cryptox.Hasher{
		Pepper: "test-pepper",
		Params: cryptox.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16},
	}

	outbox := &Outbox{}
	session := &service.SessionService{
		Credentials: &service.CredentialService{Store: st, Hasher: hasher, DefaultRole: "user"},
		Tokens:      &service.TokenService{Store: st, JWT: jm, TTL: time.Hour},
		MFA: &service.MFAService{
			Store:  st,
			Sender: outbox,
			Issuer: Issuer,
		},
		OAuth: &service.OAuthService{
			Providers:        service.OAuthProviders(map[string]string{"github": "gh-client", "google": "g-client"}),
			AllowedRedirects: opts.AllowedRedirects,
		},
	}

	limits := relaxedLimits()
	if opts.Limits != nil {
		limits = *opts.Limits
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := httpapi.NewRouter(session, st, "test", limits, logger)
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		_ = st.Close()
	})

	return &Env{Server: srv, Router: router, Session: session, Store: st, Outbox: outbox}
}
