package session

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCredentials marks a rejected email/password pair.
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	// TextCodeValidationFailed marks client-side payload validation.
	TextCodeValidationFailed = "VALIDATION_FAILED"
	// TextCodeNetworkError marks a transport-level failure (no response).
	TextCodeNetworkError = "NETWORK_ERROR"
	// TextCodeUpstreamError marks a server failure without a usable body.
	TextCodeUpstreamError = "UPSTREAM_ERROR"
	// TextCodeTokenRejected marks a 401 on an authenticated call.
	TextCodeTokenRejected = "TOKEN_REJECTED"
	// TextCodeNoToken marks an authenticated call attempted with no token.
	TextCodeNoToken = "NO_TOKEN"
	// TextCodeDuplicateAccount marks a registration uniqueness conflict.
	TextCodeDuplicateAccount = "DUPLICATE_ACCOUNT"
)

// GenericFailureMessage is surfaced when the server body is absent or
// malformed, so the UI always has something to render.
const GenericFailureMessage = "An unexpected error occurred, please try again"

// ErrNoToken is returned by FetchProfile when no token is present; no
// network call is issued.
var ErrNoToken = goerrors.New("No token found", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is the tagged form of a rejected login.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRejected signals the backend refused the stored bearer token.
var ErrTokenRejected = goerrors.New("authentication token rejected", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRejected).
	WithCode(goerrors.CodeUnauthorized)

// IsUnauthorizedError reports whether err carries the rejected-token or
// invalid-credentials text codes.
func IsUnauthorizedError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeTokenRejected ||
		richErr.TextCode == TextCodeInvalidCredentials
}

// IsValidationError reports whether err was raised before any network
// call by payload validation.
func IsValidationError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeValidationFailed
}

// IsNetworkError reports whether err never produced an HTTP response.
func IsNetworkError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeNetworkError
}

// FailureMessage extracts the human-readable message the UI should
// render for a settled gateway failure.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}

	return GenericFailureMessage
}
