package whisper

import (
	"errors"
	"net/http"
)

// Sentinel errors returned by UserStore implementations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// Error codes carried by AuthError
const (
	ErrCodeMissingField    = "missing_field"
	ErrCodeInvalidUsername = "invalid_username"
	ErrCodeWeakPassword    = "weak_password"
	ErrCodeUsernameTaken   = "username_taken"
	ErrCodeInvalidCreds    = "invalid_credentials"
	ErrCodeStorageFailure  = "storage_failure"
)

// AuthError describes a signup or login failure in a form the handlers can
// route on: a stable code, a human message and the offending form field.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// NewAuthError creates an AuthError
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

// AuthErrorHandler lets the app decide how auth failures surface (eg a
// redirect back to the originating form). Return true if the error was
// handled and no default response should be written.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool

// RedirectOnError returns an AuthErrorHandler that always redirects to the
// given URL, discarding the error details. The error is expected to have
// been logged by the caller already.
func RedirectOnError(url string) AuthErrorHandler {
	return func(err *AuthError, w http.ResponseWriter, r *http.Request) bool {
		http.Redirect(w, r, url, http.StatusFound)
		return true
	}
}
