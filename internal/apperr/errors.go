// Package apperr defines the error taxonomy shared by the web tier and the
// dev API: a machine-readable code, an internal message and an optional cause.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeConflict         Code = "CONFLICT"
	CodeVoteRejected     Code = "VOTE_REJECTED"
	CodeVoteInFlight     Code = "VOTE_IN_FLIGHT"
	CodeNetworkRejected  Code = "NETWORK_REJECTED"
	CodeCacheUnavailable Code = "CACHE_UNAVAILABLE"
	CodeRoleUnresolved   Code = "ROLE_UNRESOLVED"
	CodePostLimitReached Code = "POST_LIMIT_REACHED"
	CodePaymentDeclined  Code = "PAYMENT_DECLINED"
)

// HTTPStatus maps a code to the status the web tier answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden, CodePostLimitReached:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConflict, CodeVoteInFlight:
		return http.StatusConflict
	case CodePaymentDeclined:
		return http.StatusPaymentRequired
	case CodeVoteRejected, CodeNetworkRejected:
		return http.StatusBadGateway
	case CodeRoleUnresolved, CodeCacheUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}
