package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures that callers are expected to see.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindForbidden
	KindNotFound
	KindConflict
	KindInsufficientFunds
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// AppError is a typed domain failure. Code is the machine-readable string
// returned to clients; Details is merged into the response body.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAppError(kind ErrorKind, code, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(code, format string, args ...interface{}) *AppError {
	return newAppError(KindValidation, code, format, args...)
}

func ForbiddenError(format string, args ...interface{}) *AppError {
	return newAppError(KindForbidden, "forbidden", format, args...)
}

func NotFoundError(code, format string, args ...interface{}) *AppError {
	return newAppError(KindNotFound, code, format, args...)
}

func ConflictError(code, format string, args ...interface{}) *AppError {
	return newAppError(KindConflict, code, format, args...)
}

func UnavailableError(code, format string, args ...interface{}) *AppError {
	return newAppError(KindUnavailable, code, format, args...)
}

// InsufficientFundsError reports the required amount and the current balance.
func InsufficientFundsError(needed, have int64) *AppError {
	return &AppError{
		Kind:    KindInsufficientFunds,
		Code:    "not_enough_kinetics",
		Message: fmt.Sprintf("need %d kinetics, have %d", needed, have),
		Details: map[string]interface{}{"needed": needed, "have": have},
	}
}

func errCharacterNotFound(id string) *AppError {
	return NotFoundError("character_not_found", "character %s not found", id)
}

// AsAppError unwraps err into an *AppError when it carries one.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}
