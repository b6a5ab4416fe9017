// Package services defines the business logic for leads, categories, zip
// requests, and users. This file centralizes service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Errors fall into four classes that handlers translate into HTTP statuses:
//
//   - *ValidationError       client-correctable input problem (400)
//   - ErrUnauthorized        bad or missing credentials (401)
//   - ErrNotFound variants   referenced entity does not exist (404)
//   - ErrConflict variants   unique constraint would be violated (409)
//
// Anything else is an internal failure. Callers classify with errors.Is and
// errors.As; service methods wrap persistence failures with %w.
package services

import (
	"errors"
	"fmt"
)

// Base classes. The specific variants below wrap one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// Not-found variants.
var (
	ErrLeadNotFound       = fmt.Errorf("lead %w", ErrNotFound)
	ErrCategoryNotFound   = fmt.Errorf("category %w", ErrNotFound)
	ErrZipRequestNotFound = fmt.Errorf("zip request %w", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
)

// Conflict variants.
var (
	ErrCategoryExists = fmt.Errorf("category name already exists: %w", ErrConflict)
	ErrPlaceIDExists  = fmt.Errorf("a lead with this placeId already exists: %w", ErrConflict)
	ErrEmailExists    = fmt.Errorf("a user with this email already exists: %w", ErrConflict)
)

// ErrInvalidCredentials is returned by Login. It deliberately does not say
// whether the email or the password was wrong.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)

// ValidationError reports a missing or malformed input field.
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

// invalid builds a *ValidationError.
func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
