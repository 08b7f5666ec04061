package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// apiError maps a service error to its wire form. Token failures collapse
// into one generic invalid_token so callers cannot tell which check failed.
func apiError(err error) *authsdk.APIError {
	switch {
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return authsdk.ErrTemporarilyUnavailable
	case service.IsAuthFailure(err):
		return authsdk.ErrInvalidToken
	case errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.ErrInvalidCredentials
	case errors.Is(err, service.ErrDuplicateEmail):
		return authsdk.ErrDuplicateEmail
	case errors.Is(err, service.ErrInvalidEmail):
		return authsdk.ErrInvalidEmail
	case errors.Is(err, service.ErrWeakPassword):
		return authsdk.ErrWeakPassword
	case errors.Is(err, service.ErrUnsupportedMFAMethod):
		return authsdk.ErrUnsupportedMethod
	case errors.Is(err, service.ErrMFADestinationMissing):
		return authsdk.ErrDestinationMissing
	case errors.Is(err, service.ErrMFADeliveryUnavailable):
		return authsdk.ErrDeliveryUnavailable
	case errors.Is(err, service.ErrNoActiveChallenge):
		return authsdk.ErrNoActiveChallenge
	case errors.Is(err, service.ErrMFAExpired):
		return authsdk.ErrMFAExpired
	case errors.Is(err, service.ErrMFACodeMismatch):
		return authsdk.ErrInvalidCode
	case errors.Is(err, service.ErrMFAAlreadyConsumed):
		return authsdk.ErrMFAAlreadyConsumed
	case errors.Is(err, service.ErrMFANotEnabled):
		return authsdk.ErrMFANotEnabled
	case errors.Is(err, service.ErrUnsupportedOAuthProvider):
		return authsdk.ErrUnsupportedProvider
	case errors.Is(err, service.ErrInvalidRedirectURI):
		return authsdk.ErrInvalidRedirectURI
	default:
		return authsdk.ErrServerError
	}
}

// writeError logs the full error server side and sends the generic code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiError(err)
	log := slogx.FromContext(r.Context())
	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed", "code", apiErr.Code, "err", err)
	} else {
		log.Info("request rejected", "code", apiErr.Code, "err", err)
	}
	apiErr.WriteError(w)
}

// writeAuthnError is the httpx.ErrorWriter for bearer-protected routes.
func writeAuthnError(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, service.ErrUpstreamUnavailable) {
		authsdk.ErrTemporarilyUnavailable.WriteError(w)
		return
	}
	authsdk.ErrInvalidToken.WriteError(w)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Info("invalid request body", "err", err)
	authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
}
