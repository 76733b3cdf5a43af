package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation = "validation_error"
	CodeForbidden  = "permission_denied"
	CodeNotFound   = "not_found"
	CodeDependency = "dependency_failure"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...))
}

func Forbidden(format string, args ...any) *Error {
	return New(http.StatusForbidden, CodeForbidden, fmt.Errorf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

// Dependency wraps a store or collaborator failure. The wrapped error stays
// available to logs through Unwrap but never reaches clients.
func Dependency(op string, err error) *Error {
	return New(http.StatusServiceUnavailable, CodeDependency, fmt.Errorf("%s: %w", op, err))
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}

func IsCode(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

// StatusOf maps err to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	if ae, ok := As(err); ok && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage is the only text about err that may cross a client boundary.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	ae, ok := As(err)
	if !ok {
		return "internal error"
	}
	switch ae.Code {
	case CodeDependency:
		return "service temporarily unavailable"
	case "":
		return "internal error"
	}
	if ae.Err != nil {
		return ae.Err.Error()
	}
	return ae.Code
}
