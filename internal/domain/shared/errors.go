// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrExpired         = errors.New("expired")

	// Persistence errors
	ErrPersistence            = errors.New("persistence failure")
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "event", "progress", "analytics"
	Op      string // Operation that failed, e.g., "Append", "RecordAttempt"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Event domain errors
var (
	ErrUnknownEventType  = NewDomainError("event", "Validate", ErrValidation, "event type is not in the allowed vocabulary")
	ErrInvalidEventType  = NewDomainError("event", "Validate", ErrInvalidFormat, "event type must match ^[a-z_]+$")
	ErrInvalidEventUser  = NewDomainError("event", "Validate", ErrInvalidID, "event user id is required")
	ErrEventTimestamp    = NewDomainError("event", "Validate", ErrFutureTimestamp, "event timestamp is in the future")
	ErrEmptyBatch        = NewDomainError("event", "ValidateBatch", ErrEmptyValue, "batch contains no events")
	ErrEventNotFound     = NewDomainError("event", "Query", ErrNotFound, "event not found")
	ErrEventUserUnknown  = NewDomainError("event", "Append", ErrNotFound, "event references an unknown user")
	ErrEventStoreFailure = NewDomainError("event", "Append", ErrPersistence, "event store rejected the write")
)

// Progress domain errors
var (
	ErrUserNotFound        = NewDomainError("progress", "RecordAttempt", ErrNotFound, "user not found")
	ErrProgressNotFound    = NewDomainError("progress", "Get", ErrNotFound, "progress record not found")
	ErrInvalidUserID       = NewDomainError("progress", "Validate", ErrInvalidID, "invalid user id")
	ErrInvalidUnitGroupID  = NewDomainError("progress", "Validate", ErrInvalidID, "invalid unit group id")
	ErrInvalidItemID       = NewDomainError("progress", "Validate", ErrInvalidID, "invalid item id")
	ErrStatusRegression    = NewDomainError("progress", "AdvanceStatus", ErrStateTransition, "status can only move forward")
	ErrCatalogUnavailable  = NewDomainError("progress", "Snapshot", ErrExternalService, "item catalog unavailable")
	ErrProgressConcurrency = NewDomainError("progress", "Upsert", ErrConcurrentModification, "concurrent progress update")
)

// Analytics domain errors
var (
	ErrEmptyFunnel    = NewDomainError("analytics", "ComputeFunnel", ErrEmptyValue, "funnel requires at least one step")
	ErrUnknownStep    = NewDomainError("analytics", "ComputeFunnel", ErrValidation, "funnel step is not a known event type")
	ErrInvalidWindow  = NewDomainError("analytics", "Validate", ErrValueOutOfRange, "window end must be after start")
	ErrReportNotFound = NewDomainError("analytics", "GetReport", ErrNotFound, "report not found")
)

// Notification side-effect errors (logged and swallowed by callers)
var (
	ErrNotifyFailed    = NewDomainError("notify", "Send", ErrExternalService, "failed to deliver notification")
	ErrStageGateFailed = NewDomainError("notify", "UnlockStage", ErrExternalService, "failed to unlock next stage")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrFutureTimestamp) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsPersistence checks if the error originated in the storage layer.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
