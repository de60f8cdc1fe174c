package errors

import (
	"fmt"
)

// ErrorType defines different categories of cache-layer errors
type ErrorType string

const (
	// ErrorTypeStoreCapability marks a backend that lacks tag-grouped bulk delete.
	ErrorTypeStoreCapability ErrorType = "STORE_CAPABILITY"
	// ErrorTypeResolution marks a failure to compute the shard root of a node.
	ErrorTypeResolution ErrorType = "RESOLUTION"
	// ErrorTypePartialInvalidation marks a batched clear where some shards failed.
	ErrorTypePartialInvalidation ErrorType = "PARTIAL_INVALIDATION"
	// ErrorTypeSchedulingConflict marks a debounce lock already held for an id-set.
	// Callers treat this as success: a flush is already pending.
	ErrorTypeSchedulingConflict ErrorType = "SCHEDULING_CONFLICT"
	// ErrorTypeWorkerExecution marks a background flush job failure.
	ErrorTypeWorkerExecution ErrorType = "WORKER_EXECUTION"
	// ErrorTypeInternal is the catch-all for unexpected failures.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// CacheError is the custom error type for the cache engine
type CacheError struct {
	Type    ErrorType
	Message string
	Err     error

	// FailedIDs carries the shard root ids a partial invalidation could not clear.
	FailedIDs []int64
}

// Error implements the error interface
func (e *CacheError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *CacheError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewStoreCapability creates an error for a backend missing tag support
func NewStoreCapability(message string) error {
	return &CacheError{
		Type:    ErrorTypeStoreCapability,
		Message: message,
	}
}

// NewResolution creates an error for an unresolvable shard root
func NewResolution(message string, err error) error {
	return &CacheError{
		Type:    ErrorTypeResolution,
		Message: message,
		Err:     err,
	}
}

// NewPartialInvalidation creates an error carrying the shard ids that failed to clear
func NewPartialInvalidation(message string, failedIDs []int64, err error) error {
	return &CacheError{
		Type:      ErrorTypePartialInvalidation,
		Message:   message,
		Err:       err,
		FailedIDs: failedIDs,
	}
}

// NewSchedulingConflict creates an error for a debounce lock already held
func NewSchedulingConflict(message string) error {
	return &CacheError{
		Type:    ErrorTypeSchedulingConflict,
		Message: message,
	}
}

// NewWorkerExecution creates an error for a failed background flush job
func NewWorkerExecution(message string, err error) error {
	return &CacheError{
		Type:    ErrorTypeWorkerExecution,
		Message: message,
		Err:     err,
	}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &CacheError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already a CacheError, preserve the type and failed ids
	if cacheErr, ok := err.(*CacheError); ok {
		return &CacheError{
			Type:      cacheErr.Type,
			Message:   fmt.Sprintf("%s: %s", message, cacheErr.Message),
			Err:       cacheErr.Err,
			FailedIDs: cacheErr.FailedIDs,
		}
	}

	return &CacheError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Type checking functions

// IsStoreCapability checks if an error is a store capability error
func IsStoreCapability(err error) bool {
	return typeOf(err) == ErrorTypeStoreCapability
}

// IsResolution checks if an error is a resolution error
func IsResolution(err error) bool {
	return typeOf(err) == ErrorTypeResolution
}

// IsPartialInvalidation checks if an error is a partial invalidation error
func IsPartialInvalidation(err error) bool {
	return typeOf(err) == ErrorTypePartialInvalidation
}

// IsSchedulingConflict checks if an error is a scheduling conflict
func IsSchedulingConflict(err error) bool {
	return typeOf(err) == ErrorTypeSchedulingConflict
}

// IsWorkerExecution checks if an error is a worker execution error
func IsWorkerExecution(err error) bool {
	return typeOf(err) == ErrorTypeWorkerExecution
}

// FailedIDs extracts the failed shard ids from a partial invalidation error
func FailedIDs(err error) []int64 {
	if cacheErr, ok := err.(*CacheError); ok {
		return cacheErr.FailedIDs
	}
	return nil
}

func typeOf(err error) ErrorType {
	if cacheErr, ok := err.(*CacheError); ok {
		return cacheErr.Type
	}
	return ""
}
