// Package domainerrors defines the coded error type used across service
// boundaries. Services attach a Code so transport layers can translate errors
// to HTTP statuses without string matching, and so callers can branch on the
// class of failure (bad input vs. no match vs. quorum failure) with Is.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for HTTP translation.
type Code string

const (
	// CodeBadRequest: malformed or out-of-bounds input; caller can fix and retry.
	CodeBadRequest Code = "bad_request"
	// CodeNoMatch: filters matched zero personas; not a system fault.
	CodeNoMatch Code = "no_match"
	// CodeQuorumFailed: too few persona replies succeeded to build an aggregate.
	CodeQuorumFailed Code = "quorum_failed"
	// CodeUnauthorized: missing or invalid credentials for a protected surface.
	CodeUnauthorized Code = "unauthorized"
	// CodeNotFound: referenced entity (cohort, correlation id) does not exist.
	CodeNotFound Code = "not_found"
	// CodeRateLimited: client exceeded its request window.
	CodeRateLimited Code = "rate_limited"
	// CodeUnavailable: a required collaborator (provider, store) is down.
	CodeUnavailable Code = "unavailable"
	// CodeInternal: anything uncaught; detail is logged, never returned.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Message is safe to show to callers except
// for CodeInternal, where transports must omit it.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a coded error preserving the underlying cause for logs.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-safe message from err. Internal errors yield
// a generic message so provider and store detail never leaks.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != CodeInternal {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNoMatch:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeQuorumFailed, CodeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
