package http

import (
	"net/http"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

// MFAHandler handles all MFA-related endpoints. Every route sits behind the
// authn middleware, so the acting user always comes from the bearer token.
type MFAHandler struct {
	Session *service.SessionService
}

// HandleSetup handles POST /api/auth/mfa/setup
//
//	@Summary		Start an MFA challenge
//	@Description	Creates a challenge for the method, replacing any earlier one. TOTP returns the secret and otpauth URL; email and sms send a one-time code and return the masked destination.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFASetupRequest		true	"Method: totp, email or sms"
//	@Success		200		{object}	authsdk.MFASetupResponse	"Method-specific payload"
//	@Failure		400		{object}	httpx.ErrorBody				"unsupported_method, mfa_destination_missing or mfa_delivery_unavailable"
//	@Failure		401		{object}	httpx.ErrorBody				"invalid_token"
//	@Failure		503		{object}	httpx.ErrorBody				"temporarily_unavailable"
//	@Router			/api/auth/mfa/setup [post].
func (h *MFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	user, ok := httpx.UserFromContext[domain.User](r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.MFASetupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	payload, err := h.Session.SetupMFAForUser(r.Context(), user, req.Method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSetupResponse(payload))
}

// HandleVerify handles POST /api/auth/mfa/verify
//
//	@Summary		Verify an MFA code
//	@Description	Consumes the pending challenge and enables MFA. Backup codes are returned only the first time MFA is enabled.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFAVerifyRequest	true	"Code and method"
//	@Success		200		{object}	authsdk.MFAVerifyResponse	"Verification result"
//	@Failure		400		{object}	httpx.ErrorBody				"no_active_challenge, mfa_expired, invalid_code or mfa_already_consumed"
//	@Failure		401		{object}	httpx.ErrorBody				"invalid_token"
//	@Failure		429		{object}	httpx.ErrorBody				"rate_limit_exceeded"
//	@Failure		503		{object}	httpx.ErrorBody				"temporarily_unavailable"
//	@Router			/api/auth/mfa/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	user, ok := httpx.UserFromContext[domain.User](r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.MFAVerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	res, err := h.Session.VerifyMFAForUser(r.Context(), user, req.Code, req.Method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toVerifyResponse(res))
}

// HandleDisable handles POST /api/auth/mfa/disable
//
//	@Summary		Disable MFA
//	@Description	Turns MFA off given a current TOTP code, a code from a fresh challenge of the enrolled method, or an unused backup code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.MFADisableRequest	true	"Code"
//	@Success		204		"MFA disabled"
//	@Failure		400		{object}	httpx.ErrorBody	"invalid_code or mfa_not_enabled"
//	@Failure		401		{object}	httpx.ErrorBody	"invalid_token"
//	@Failure		503		{object}	httpx.ErrorBody	"temporarily_unavailable"
//	@Router			/api/auth/mfa/disable [post].
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	user, ok := httpx.UserFromContext[domain.User](r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.MFADisableRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	if err := h.Session.DisableMFAForUser(r.Context(), user, req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
