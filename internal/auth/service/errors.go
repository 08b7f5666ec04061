package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrDuplicateEmail     = errors.New("duplicate_email")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrWeakPassword       = errors.New("weak_password")

	// ErrBadPassword is internal to the credential layer; the session layer
	// reports it as ErrInvalidCredentials.
	ErrBadPassword = errors.New("bad_password")

	ErrTokenMalformed = errors.New("token_malformed")
	ErrTokenExpired   = errors.New("token_expired")
	ErrTokenRevoked   = errors.New("token_revoked")
	ErrUnknownUser    = errors.New("unknown_user")

	ErrUnsupportedMFAMethod   = errors.New("unsupported_method")
	ErrMFADestinationMissing  = errors.New("mfa_destination_missing")
	ErrMFADeliveryUnavailable = errors.New("mfa_delivery_unavailable")
	ErrNoActiveChallenge      = errors.New("no_active_challenge")
	ErrMFAExpired             = errors.New("mfa_expired")
	ErrMFACodeMismatch        = errors.New("invalid_code")
	ErrMFAAlreadyConsumed     = errors.New("mfa_already_consumed")
	ErrMFANotEnabled          = errors.New("mfa_not_enabled")

	ErrUnsupportedOAuthProvider = errors.New("unsupported_provider")
	ErrInvalidRedirectURI       = errors.New("invalid_redirect_uri")

	// ErrUpstreamUnavailable marks a failure of the store, signer or
	// notification channel. Callers may retry with backoff.
	ErrUpstreamUnavailable = errors.New("temporarily_unavailable")
)

// upstream tags err as an upstream failure while keeping it in the chain for
// server-side logging.
func upstream(op string, err error) error {
	if errors.Is(err, ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
}

// IsAuthFailure reports whether err is one of the token failures that should
// be answered with a generic 401.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrUnknownUser)
}
