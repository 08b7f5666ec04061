package http

import (
	"net/http"

	"github.com/aussiebroadwan/authflow/internal/auth/service"
)

type OAuthHandler struct {
	Session *service.SessionService
}

// HandleRedirect handles GET /api/auth/oauth/{provider}
//
//	@Summary		Redirect to an OAuth provider
//	@Description	Redirects the browser to the provider's authorize endpoint with client_id, redirect_uri, response_type, scope and state set.
//	@Tags			OAuth
//	@Param			provider		path	string	true	"Provider name (github, google, microsoft)"
//	@Param			redirect_uri	query	string	true	"Absolute http(s) callback URL"
//	@Success		302				"Redirect to provider"
//	@Failure		400				{object}	httpx.ErrorBody	"invalid_redirect_uri"
//	@Failure		404				{object}	httpx.ErrorBody	"unsupported_provider"
//	@Router			/api/auth/oauth/{provider} [get].
func (h *OAuthHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	target, err := h.Session.OAuthRedirectURL(r.PathValue("provider"), r.URL.Query().Get("redirect_uri"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}
