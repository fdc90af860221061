package apperr

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Body is the JSON error envelope: {"error": {"code", "message"}}.
type Body struct {
	Error Detail `json:"error"`
}

type Detail struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// upstream is implemented by errors carrying a non-2xx answer of another
// service.
type upstream interface {
	HTTPStatus() int
	Reason() string
}

// Classify turns any error into an *Error. Upstream answers keep their
// meaning for the caller: a 404 stays NOT_FOUND, a 409 stays CONFLICT.
func Classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var up upstream
	if errors.As(err, &up) {
		status := up.HTTPStatus()
		msg := up.Reason()
		if msg == "" {
			msg = http.StatusText(status)
		}
		return Wrap(codeForStatus(status), msg, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeNetworkRejected, "forum API did not answer in time", err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return Wrap(CodeNetworkRejected, "forum API is unreachable", err)
	}
	return Wrap(CodeUnknown, "", err)
}

// Response returns the status and envelope the web tier answers err with.
// Messages of unclassified errors are not exposed.
func Response(err error) (int, Body) {
	e := Classify(err)
	msg := e.Message
	if e.Code == CodeUnknown || msg == "" {
		msg = "internal error"
	}
	return e.Code.HTTPStatus(), Body{Error: Detail{Code: e.Code, Message: msg}}
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeInvalidInput
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusPaymentRequired:
		return CodePaymentDeclined
	default:
		return CodeNetworkRejected
	}
}
