package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class. Codes are part of the API contract: they
// are serialized verbatim in error responses and mapped to HTTP statuses.
type Code string

const (
	CodeInvalidArgument     Code = "InvalidArgument"
	CodeInvalidURL          Code = "InvalidUrl"
	CodeInvalidScheme       Code = "InvalidScheme"
	CodeInvalidHostname     Code = "InvalidHostname"
	CodeInvalidURI          Code = "InvalidUri"
	CodeNotFound            Code = "NotFound"
	CodeAccessDenied        Code = "AccessDenied"
	CodeTargetAlreadyExists Code = "TargetAlreadyExists"
	CodeBackendUnavailable  Code = "BackendUnavailable"
	CodeInternal            Code = "InternalError"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code, so sentinel comparisons like
// errors.Is(err, errs.New(errs.CodeNotFound, "")) work regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error code to its response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument, CodeInvalidURL, CodeInvalidScheme, CodeInvalidHostname, CodeInvalidURI:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodeTargetAlreadyExists:
		return http.StatusConflict
	case CodeBackendUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
