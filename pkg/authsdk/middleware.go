package authsdk

import (
	"net/http"

	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

// Middleware verifies the caller's bearer token against the auth service and
// attaches the resolved User to the request context, where downstream
// handlers read it with UserFromRequest. policy decides whether requests
// without a valid token are rejected or passed through.
func (c *Client) Middleware(policy httpx.Policy) httpx.Middleware {
	return httpx.AuthnMiddleware(c.VerifyToken, policy,
		httpx.WithErrorWriter(func(w http.ResponseWriter, _ *http.Request, err error) {
			if IsCode(err, ErrorCodeTemporarilyUnavailable) {
				ErrTemporarilyUnavailable.WriteError(w)
				return
			}
			ErrInvalidToken.WriteError(w)
		}),
	)
}

// UserFromRequest returns the user attached by Middleware.
func UserFromRequest(r *http.Request) (User, bool) {
	return httpx.UserFromContext[User](r.Context())
}
