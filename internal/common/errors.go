package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors.
var (
	// ErrDiscovery means the input directory could not be read at all.
	// This aborts the run before any processing begins.
	ErrDiscovery = errors.New("discovery failed")
	// ErrOutput means an output artifact (CSV, report, workbook) could not
	// be written. Already-relocated files and in-memory results survive.
	ErrOutput = errors.New("output write failed")
	// ErrInvalidInput covers bad configuration or arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// NewAppError builds an AppError with the given code, message and cause.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapError annotates err with a message, preserving the chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
