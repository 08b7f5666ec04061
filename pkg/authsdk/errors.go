package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

// Error codes carried in the "error" field of every error response.
const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeInvalidCredentials     = "invalid_credentials"
	ErrorCodeInvalidEmail           = "invalid_email"
	ErrorCodeWeakPassword           = "weak_password"
	ErrorCodeDuplicateEmail         = "duplicate_email"
	ErrorCodeInvalidToken           = "invalid_token"
	ErrorCodeUnsupportedMethod      = "unsupported_method"
	ErrorCodeDestinationMissing     = "mfa_destination_missing"
	ErrorCodeDeliveryUnavailable    = "mfa_delivery_unavailable"
	ErrorCodeNoActiveChallenge      = "no_active_challenge"
	ErrorCodeMFAExpired             = "mfa_expired"
	ErrorCodeInvalidCode            = "invalid_code"
	ErrorCodeMFAAlreadyConsumed     = "mfa_already_consumed"
	ErrorCodeMFANotEnabled          = "mfa_not_enabled"
	ErrorCodeUnsupportedProvider    = "unsupported_provider"
	ErrorCodeInvalidRedirectURI     = "invalid_redirect_uri"
	ErrorCodeTemporarilyUnavailable = "temporarily_unavailable"
	ErrorCodeRateLimited            = "rate_limit_exceeded"
	ErrorCodeNotFound               = "not_found"
	ErrorCodeServerError            = "server_error"
)

// APIError is the error type used on both sides of the wire: handlers write
// it, the client parses it back.
type APIError struct {
	// StatusCode is the HTTP status code for this error.
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`

	// RetryAfter is sent as the Retry-After header (seconds) when non-zero.
	RetryAfter int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	if e.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	httpx.WriteError(w, e.StatusCode, e.Code, e.Description)
}

// WithDescription returns a copy with a different description.
func (e *APIError) WithDescription(desc string) *APIError {
	cp := *e
	cp.Description = desc
	return &cp
}

// IsCode reports whether err is an *APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Predefined errors. Authentication failures share generic descriptions so a
// caller cannot tell which sub-check failed.
var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid email or password",
	}
	ErrInvalidEmail = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidEmail,
		Description: "email address is not valid",
	}
	ErrWeakPassword = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeWeakPassword,
		Description: "password must be between 8 and 128 characters",
	}
	ErrDuplicateEmail = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeDuplicateEmail,
		Description: "an account with this email already exists",
	}
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid, expired or revoked",
	}
	ErrUnsupportedMethod = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedMethod,
		Description: "unsupported mfa method",
	}
	ErrDestinationMissing = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeDestinationMissing,
		Description: "no delivery destination on file for this method",
	}
	ErrDeliveryUnavailable = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeDeliveryUnavailable,
		Description: "codes cannot be delivered by this method on this server",
	}
	ErrNoActiveChallenge = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeNoActiveChallenge,
		Description: "no active mfa challenge; run setup first",
	}
	ErrMFAExpired = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeMFAExpired,
		Description: "the mfa challenge has expired",
	}
	ErrInvalidCode = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidCode,
		Description: "the code is not valid",
	}
	ErrMFAAlreadyConsumed = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeMFAAlreadyConsumed,
		Description: "the mfa challenge was already used",
	}
	ErrMFANotEnabled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeMFANotEnabled,
		Description: "mfa is not enabled for this account",
	}
	ErrUnsupportedProvider = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeUnsupportedProvider,
		Description: "unknown oauth provider",
	}
	ErrInvalidRedirectURI = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRedirectURI,
		Description: "redirect_uri must be an allowed absolute http(s) url",
	}
	ErrTemporarilyUnavailable = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeTemporarilyUnavailable,
		Description: "the service is temporarily unavailable, retry later",
		RetryAfter:  1,
	}
	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if ra, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = ra
	}

	var errResp httpx.ErrorBody
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Error
		apiErr.Description = errResp.ErrorDescription
		return apiErr
	}

	apiErr.Code = ErrorCodeServerError
	apiErr.Description = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	return apiErr
}
