package sentry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"komun/internal/client/logger"
	apperrors "komun/internal/errors"
)

// ignoredErrors contains error messages that should be logged but not sent to Sentry.
// These come from flaky networks on the resident's side and create noise.
var ignoredErrors = []string{
	"connection reset by peer",         // Network dropped mid-request (sleep mode, Wi-Fi switch)
	"connection refused",               // API unreachable from this network
	"no such host",                     // DNS failure, usually offline
	"EOF",                              // Server closed the connection early
	"broken pipe",                      // Write to closed connection
	"use of closed network connection", // Operation on already closed connection
}

// Init configures the Sentry client. An empty DSN disables reporting.
func Init(dsn, release string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: true,
	})
}

// Flush waits for buffered events to be sent.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// shouldIgnore checks if an error should be filtered out from Sentry.
// Expected client conditions (offline, cancelled, invalid input, expired
// session, server-side 4xx) are not bugs.
func shouldIgnore(err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if apperrors.IsNetworkError(err) || apperrors.IsValidationError(err) || apperrors.IsAuthError(err) {
		return true
	}
	if status := apperrors.StatusCode(err); status >= 400 && status < 500 {
		return true
	}

	type timeoutError interface{ Timeout() bool }
	var te timeoutError
	if errors.As(err, &te) && te.Timeout() {
		return true
	}

	errStr := err.Error()
	for _, ignored := range ignoredErrors {
		if strings.Contains(errStr, ignored) {
			return true
		}
	}
	return false
}

// CaptureError logs an error locally and reports it to Sentry.
// Use this for errors from background work (polling).
func CaptureError(err error, message string) {
	logger.Error("%s: %v", message, err)
	Report(err, message)
}

// Report sends err to Sentry without logging it.
func Report(err error, message string) {
	if shouldIgnore(err) {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("message", message)
		if status := apperrors.StatusCode(err); status != 0 {
			scope.SetTag("http.status", fmt.Sprint(status))
		}
		sentry.CaptureException(err)
	})
}

// CaptureErrorf logs and reports an error with a formatted message.
func CaptureErrorf(err error, format string, args ...interface{}) {
	CaptureError(err, fmt.Sprintf(format, args...))
}
