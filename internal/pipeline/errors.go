// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import (
	"errors"
	"strings"
)

// ErrSessionNotFound is returned by a SessionStore when the requested
// session does not exist (or its TTL has elapsed in the store).
var ErrSessionNotFound = errors.New("session not found")

// ErrorCategory categorizes errors for metrics and log labelling.
type ErrorCategory int

const (
	// ErrorCategoryUnknown is the default for unclassified errors.
	ErrorCategoryUnknown ErrorCategory = iota
	// ErrorCategoryConnection indicates network or connection failures.
	ErrorCategoryConnection
	// ErrorCategoryTimeout indicates an operation timeout or cancellation.
	ErrorCategoryTimeout
	// ErrorCategoryValidation indicates malformed or invalid record data.
	ErrorCategoryValidation
	// ErrorCategoryStorage indicates a state-store operation failure.
	ErrorCategoryStorage
)

// String returns the metrics label for the category.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryConnection:
		return "connection"
	case ErrorCategoryTimeout:
		return "timeout"
	case ErrorCategoryValidation:
		return "validation"
	case ErrorCategoryStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// PermanentError marks a record-level defect that will never succeed on
// retry: a payload that does not parse, or an event that fails validation.
// Permanent failures are isolated to their record and collected into the
// batch Report; they never abort the batch.
type PermanentError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewPermanentError creates a permanent error.
func NewPermanentError(message string, cause error) *PermanentError {
	category := categorize(message)
	if category == ErrorCategoryUnknown {
		category = ErrorCategoryValidation
	}
	return &PermanentError{Message: message, Cause: cause, Category: category}
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *PermanentError) Unwrap() error { return e.Cause }

// RetryableError marks a transient dependency failure: store
// unavailability, throttling, network errors, cancellation. A retryable
// error aborts the whole batch call so the transport redelivers the
// unprocessed remainder.
type RetryableError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewRetryableError creates a retryable (transient) error.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{Message: message, Cause: cause, Category: categorize(message)}
}

func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *RetryableError) Unwrap() error { return e.Cause }

// IsPermanentError reports whether err is (or wraps) a PermanentError.
func IsPermanentError(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}

// IsRetryableError reports whether err is (or wraps) a RetryableError.
func IsRetryableError(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// categorize derives a coarse category from an error message.
func categorize(message string) ErrorCategory {
	msg := strings.ToLower(message)
	switch {
	case containsAny(msg, "connection", "connect", "refused", "reset", "network"):
		return ErrorCategoryConnection
	case containsAny(msg, "timeout", "deadline", "cancel"):
		return ErrorCategoryTimeout
	case containsAny(msg, "invalid", "validation", "malformed", "parse", "required"):
		return ErrorCategoryValidation
	case containsAny(msg, "store", "archive", "session", "metrics", "badger"):
		return ErrorCategoryStorage
	default:
		return ErrorCategoryUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
