package service

import (
	"errors"
	"fmt"
)

// Code classifies expected failure modes so the handler layer can map each to
// the right HTTP status without string matching on messages.
type Code string

const (
	CodeValidationError       Code = "VALIDATION_ERROR"
	CodeStoreClosed           Code = "STORE_CLOSED"
	CodeTableNotAvailable     Code = "TABLE_NOT_AVAILABLE"
	CodeInsufficientStock     Code = "INSUFFICIENT_STOCK"
	CodeIngredientUnavailable Code = "INGREDIENT_UNAVAILABLE"
	CodeInvalidCPF            Code = "INVALID_CPF"
	CodeNotFound              Code = "NOT_FOUND"
	CodeForbidden             Code = "FORBIDDEN"
	CodeDatabaseError         Code = "DATABASE_ERROR"
	CodeUnknownError          Code = "UNKNOWN_ERROR"
)

// Error is the service-layer failure type. Raw driver errors never cross the
// service boundary; they get wrapped with CodeDatabaseError instead.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a business or validation error.
func E(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// DBErr wraps an infrastructure failure with the operation that hit it.
func DBErr(op string, err error) *Error {
	return &Error{Code: CodeDatabaseError, Message: op, Err: err}
}

// CodeOf extracts the Code from an error chain, CodeUnknownError otherwise.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknownError
}
