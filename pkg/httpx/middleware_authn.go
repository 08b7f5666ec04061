package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// Policy decides what happens to requests that do not authenticate.
type Policy int

const (
	// PolicyRequire rejects unauthenticated requests with 401.
	PolicyRequire Policy = iota
	// PolicyOptional lets them through without a user in the context.
	PolicyOptional
)

func (p Policy) String() string {
	if p == PolicyOptional {
		return "optional"
	}
	return "require"
}

// Resolver turns a bearer token into a user.
type Resolver[U Principal] func(ctx context.Context, token string) (U, error)

// ErrorWriter renders a resolver failure under PolicyRequire.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type authnConfig struct {
	onError ErrorWriter
}

// AuthnOption customises AuthnMiddleware.
type AuthnOption func(*authnConfig)

// WithErrorWriter replaces the default 401 response for resolver failures.
// Missing tokens always get the default response.
func WithErrorWriter(fn ErrorWriter) AuthnOption {
	return func(c *authnConfig) { c.onError = fn }
}

// AuthnMiddleware reads the bearer token, resolves it to a user and attaches
// the user to the request context. What happens on failure depends on policy.
func AuthnMiddleware[U Principal](resolve Resolver[U], policy Policy, opts ...AuthnOption) Middleware {
	cfg := authnConfig{
		onError: func(w http.ResponseWriter, _ *http.Request, _ error) {
			WriteBearerError(w, "invalid or expired token")
		},
	}
	for _, o := range opts {
		o(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				if policy == PolicyOptional {
					next.ServeHTTP(w, r)
					return
				}
				WriteBearerError(w, "missing bearer token")
				return
			}

			user, err := resolve(ctx, raw)
			if err != nil {
				slogx.FromContext(ctx).Info("bearer token rejected", "err", err, "policy", policy.String())
				if policy == PolicyOptional {
					next.ServeHTTP(w, r)
					return
				}
				cfg.onError(w, r, err)
				return
			}

			ctx = WithUser(ctx, user)
			ctx = slogx.WithUser(ctx, user.PrincipalID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WriteBearerError writes an RFC 6750 invalid_token response.
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
