// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound         = errors.New("not found")
	ErrConflictingWrite = errors.New("conflicting write")

	// Matching errors.
	ErrAmbiguousMatch = errors.New("ambiguous match, human choice required")

	// Pricing errors.
	ErrHistoryUnavailable = errors.New("historical data unavailable")
	ErrInvalidReference   = errors.New("resolved id not found in directory or catalog")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRecoverable reports whether the error is a request-level outcome the
// calling workflow can resolve (ambiguity, conflict, bad reference) rather
// than an infrastructure failure. Recoverable errors are never retried.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrAmbiguousMatch) ||
		errors.Is(err, ErrConflictingWrite) ||
		errors.Is(err, ErrInvalidReference)
}
