package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

// AuthHandler serves registration, login, token introspection and logout.
type AuthHandler struct {
	Session *service.SessionService
}

// HandleRegister handles POST /api/auth/register
//
//	@Summary		Register a new account
//	@Description	Creates a user with a password credential and returns a session token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"Account details"
//	@Success		201		{object}	authsdk.AuthResponse	"Token and user"
//	@Failure		400		{object}	httpx.ErrorBody			"invalid_email, weak_password or invalid_request"
//	@Failure		409		{object}	httpx.ErrorBody			"duplicate_email"
//	@Failure		503		{object}	httpx.ErrorBody			"temporarily_unavailable"
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	tok, user, err := h.Session.Register(r.Context(), req.Email, req.Password, domain.Profile{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAuthResponse(tok, user))
}

// HandleLogin handles POST /api/auth/login
//
//	@Summary		Log in with email and password
//	@Description	Verifies the password and returns a session token. Failures never reveal whether the account exists.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.AuthResponse	"Token and user"
//	@Failure		400		{object}	httpx.ErrorBody			"invalid_request"
//	@Failure		401		{object}	httpx.ErrorBody			"invalid_credentials"
//	@Failure		429		{object}	httpx.ErrorBody			"rate_limit_exceeded"
//	@Failure		503		{object}	httpx.ErrorBody			"temporarily_unavailable"
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	tok, user, err := h.Session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(tok, user))
}

// HandleMe handles GET /api/auth/me
//
//	@Summary		Current user
//	@Description	Returns the user the bearer token belongs to.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse	"User"
//	@Failure		401	{object}	httpx.ErrorBody		"invalid_token"
//	@Failure		503	{object}	httpx.ErrorBody		"temporarily_unavailable"
//	@Router			/api/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := httpx.UserFromContext[domain.User](r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{User: toSDKUser(user)})
}

// HandleLogout handles POST /api/auth/logout
//
//	@Summary		Log out everywhere
//	@Description	Revokes every token issued to the user. Repeating the call with the same token also returns 204.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204	"Logged out"
//	@Failure		401	{object}	httpx.ErrorBody	"invalid_token"
//	@Failure		503	{object}	httpx.ErrorBody	"temporarily_unavailable"
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := httpx.BearerToken(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	err := h.Session.Logout(r.Context(), token)
	if err != nil && !errors.Is(err, service.ErrTokenRevoked) {
		writeError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
