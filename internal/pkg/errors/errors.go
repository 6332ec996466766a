// Package errors provides the typed error taxonomy for the publish daemon.
// Every error that crosses a provider boundary carries a closed code and a
// retryable flag; the retry helper and the runner branch on those, never on
// raw HTTP statuses.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies one class of provider failure.
type Code string

// The closed set of provider error codes.
const (
	CodeQuotaExceeded  Code = "quota_exceeded"
	CodeRateLimited    Code = "rate_limited"
	CodeTransientHTTP  Code = "transient_http_error"
	CodeNetwork        Code = "network_error"
	CodePlatformHTTP   Code = "youtube_http_error"
	CodeDownloadFailed Code = "storage_download_failed"
)

// Error is the provider error type. It wraps an optional cause and carries
// free-form diagnostic fields that are forwarded to the scheduler API.
type Error struct {
	// Code is the classification of the failure.
	Code Code
	// Message is the human-readable error message.
	Message string
	// Op is the operation that failed (e.g. "youtube.upload").
	Op string
	// Retryable reports whether attempting the operation again may succeed.
	Retryable bool
	// Err is the underlying error, if any.
	Err error
	// Fields contains additional diagnostic context.
	Fields map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}

	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}

	b.WriteString(e.Message)

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithField adds a diagnostic field to the error.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// New creates a new error with the given code and retry policy.
func New(code Code, retryable bool, op, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Op:        op,
		Retryable: retryable,
	}
}

// Newf creates a new error with a formatted message.
func Newf(code Code, retryable bool, op, format string, args ...any) *Error {
	return New(code, retryable, op, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error, preserving its code, retryable flag and
// fields when it is already a typed error. An untyped cause is classified
// as a non-retryable network error.
func Wrap(err error, op, message string) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Code:      e.Code,
			Message:   message,
			Op:        op,
			Retryable: e.Retryable,
			Err:       err,
			Fields:    e.Fields,
		}
	}

	return &Error{
		Code:    CodeNetwork,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// retryableStatuses is the set of HTTP statuses worth a second attempt.
var retryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// quotaReasons are platform-reported reasons that mean the daily quota is
// spent. Retrying is pointless until the quota window resets.
var quotaReasons = map[string]bool{
	"quotaExceeded":       true,
	"dailyLimitExceeded":  true,
	"uploadLimitExceeded": true,
}

// rateLimitReasons are platform-reported reasons that mean "slow down".
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// ClassifyHTTP maps a non-2xx platform response to a typed error. Reason
// strings win over statuses, then 429 and 503-class statuses are treated as
// transient, and anything else is a terminal platform error unless its
// status is in the retryable set.
func ClassifyHTTP(op string, status int, reason, body string) *Error {
	var e *Error

	switch {
	case quotaReasons[reason]:
		e = Newf(CodeQuotaExceeded, false, op, "platform quota exceeded (%s)", reason)
	case rateLimitReasons[reason] || status == 429:
		e = New(CodeRateLimited, true, op, "platform rate limit hit")
	case status == 502 || status == 503 || status == 504:
		e = Newf(CodeTransientHTTP, true, op, "transient platform error (http %d)", status)
	default:
		e = Newf(CodePlatformHTTP, retryableStatuses[status], op, "platform request failed (http %d)", status)
	}

	e.WithField("status", status)
	if reason != "" {
		e.WithField("reason", reason)
	}
	if body != "" {
		e.WithField("body", truncate(body, 1024))
	}
	return e
}

// RetryableStatus reports whether an HTTP status is in the retryable set.
func RetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// IsRetryable reports whether err is a typed error marked retryable.
// Untyped errors are never retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetCode extracts the code from an error, or "" for untyped errors.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetFields extracts the diagnostic fields from an error.
func GetFields(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) && e.Fields != nil {
		return e.Fields
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// As is a convenience wrapper for errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is a convenience wrapper for errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
