// Package domain contains the widget's entities, option tables and errors.
// Domain errors describe what went wrong for the widget, not how an adapter
// reports it; HTTP status mapping lives in the http dto package.
package domain

import (
	"errors"
	"fmt"
)

// FetchFailureMessage is the only text a user ever sees for a failed fetch.
const FetchFailureMessage = "failed to retrieve quote"

var (
	// ErrNotFound marks a missing or expired session.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks an option value outside its allowed set.
	ErrValidation = errors.New("validation failed")

	// ErrFetchFailed marks a quote that could not be retrieved or decoded.
	ErrFetchFailed = errors.New(FetchFailureMessage)
)

// NotFoundError names the kind of thing that was missing.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

// ValidationError rejects one option value. Field is empty for failures
// that concern the request as a whole. Value, when set, is the rejected
// input and is kept for logs.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}

	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError rejects field with message.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue rejects field and records the offending value.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// FetchError is the single failure kind of the quote fetcher. Network,
// status and decode failures all collapse into it; Cause keeps the detail
// for logs only.
type FetchError struct {
	Stage string // request, status, decode
	Cause error
}

func (e *FetchError) Error() string {
	if e.Cause == nil {
		return FetchFailureMessage
	}

	return fmt.Sprintf("%s (%s: %v)", FetchFailureMessage, e.Stage, e.Cause)
}

// Is matches ErrFetchFailed so callers need not know the concrete type.
func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

func (e *FetchError) Unwrap() error { return e.Cause }

// NewFetchError wraps cause as a failure at stage.
func NewFetchError(stage string, cause error) error {
	return &FetchError{Stage: stage, Cause: cause}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsFetchFailure reports whether err is a quote fetch failure.
func IsFetchFailure(err error) bool { return errors.Is(err, ErrFetchFailed) }
