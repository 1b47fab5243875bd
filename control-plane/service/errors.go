package service

import (
	"errors"
	"fmt"

	"github.com/QTuan97/HC-API-Plat/control-plane/storage"
)

// Business logic errors
var (
	ErrInvalidInput  = storage.ErrInvalidInput
	ErrScopeMismatch = errors.New("rule does not belong to project")
)

// Validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// DetailedError carries a machine-readable code plus context for logging.
// Err is the sentinel the error maps to, so errors.Is still works.
type DetailedError struct {
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

// NewDetailedError creates a DetailedError wrapping err.
func NewDetailedError(err error, code, message string, details map[string]interface{}) *DetailedError {
	return &DetailedError{Code: code, Message: message, Details: details, Err: err}
}

func (e *DetailedError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s %v", e.Message, e.Details)
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}
