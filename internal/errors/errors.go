// Package errors defines the error taxonomy shared by the API client, the
// stores and the CLI. Import it as apperrors.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Sentinel errors.
var (
	ErrNotFound         = stderrors.New("not found")
	ErrNoSession        = stderrors.New("no stored session")
	ErrMutationInFlight = stderrors.New("a change to this item is already in progress")
	ErrAlreadyBlocked   = stderrors.New("user already blocked")
	ErrSelfBlock        = stderrors.New("cannot block yourself")
)

// ValidationError is a client-side field check failure. It never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthError means the session cannot be recovered and the user has to log in again.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError wraps a transport failure or timeout. It is retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response that is not an unrecoverable 401.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// SendError is returned when a chat message could not be sent. Content holds
// the text so the caller can put it back into the input.
type SendError struct {
	Content string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("message not sent: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// UserError carries a human-readable message for the presentation layer
// while keeping the cause reachable through errors.Is and errors.As.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

// IsAuthError reports whether err forces re-authentication.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return stderrors.As(err, &authErr)
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return stderrors.As(err, &netErr)
}

// IsValidationError reports whether err is a client-side validation failure.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return stderrors.As(err, &vErr)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if stderrors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// UserMessage turns any error into text fit for an inline alert.
// Server messages are surfaced verbatim; fallback is used when nothing better exists.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var userErr *UserError
	if stderrors.As(err, &userErr) {
		return userErr.Message
	}

	var vErr *ValidationError
	if stderrors.As(err, &vErr) {
		return vErr.Error()
	}

	if IsAuthError(err) {
		return "Your session has expired. Please log in again."
	}

	if stderrors.Is(err, context.DeadlineExceeded) || IsNetworkError(err) {
		return "Network unavailable. Check your connection and try again."
	}

	var httpErr *HTTPError
	if stderrors.As(err, &httpErr) {
		if httpErr.Message != "" && httpErr.Message != http.StatusText(httpErr.Status) {
			return httpErr.Message
		}
		return fallback
	}

	if stderrors.Is(err, ErrMutationInFlight) || stderrors.Is(err, ErrAlreadyBlocked) || stderrors.Is(err, ErrSelfBlock) {
		return err.Error()
	}

	return fallback
}

// Normalize wraps err in a UserError unless it already is one.
func Normalize(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var userErr *UserError
	if stderrors.As(err, &userErr) {
		return err
	}
	return &UserError{Message: UserMessage(err, fallback), Err: err}
}
