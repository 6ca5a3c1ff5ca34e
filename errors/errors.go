// Package errors provides error types and handling for blob store operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a blob operation error with context about the operation that failed.
// It wraps the underlying transport or service error with additional context
// for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "download", "putBlock")
	Op string

	// Container is the container name (if applicable)
	Container string

	// Key is the blob key (if applicable)
	Key string

	// Err is the underlying error from the service or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Container != "" && e.Key != "" {
		return fmt.Sprintf("blob.%s %s/%s: %v", e.Op, e.Container, e.Key, e.Err)
	}
	if e.Container != "" {
		return fmt.Sprintf("blob.%s container %s: %v", e.Op, e.Container, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("blob.%s blob %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("blob.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithContainer adds container context to an existing error.
func (e *Error) WithContainer(container string) *Error {
	e.Container = container
	return e
}

// WithKey adds blob key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewBlobError creates a new Error with container and key context.
func NewBlobError(op, container, key string, err error) *Error {
	return &Error{
		Op:        op,
		Container: container,
		Key:       key,
		Err:       err,
	}
}

// Sentinel errors for common blob operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrBlobNotFound indicates that the requested blob does not exist
	ErrBlobNotFound = errors.New("blob: not found")

	// ErrContainerNotFound indicates that the requested container does not exist
	ErrContainerNotFound = errors.New("blob: container not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("blob: access denied")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("blob: invalid input")

	// ErrInvalidChunkSize indicates that the configured chunk size is out of range
	ErrInvalidChunkSize = errors.New("blob: invalid chunk size")

	// ErrInvalidRange indicates that the requested byte range is invalid
	ErrInvalidRange = errors.New("blob: invalid range")

	// ErrDigestMismatch indicates that a computed digest does not match the
	// expected digest; never retryable, since a retry with identical inputs
	// cannot repair corruption
	ErrDigestMismatch = errors.New("blob: content digest mismatch")

	// ErrLengthMismatch indicates that the number of bytes transferred does
	// not match the declared content length; never retryable
	ErrLengthMismatch = errors.New("blob: content length mismatch")

	// ErrBudgetExceeded indicates that the execution time budget ran out
	// before the operation could complete
	ErrBudgetExceeded = errors.New("blob: execution time budget exceeded")

	// ErrTooManyRequests indicates that the request rate is too high
	ErrTooManyRequests = errors.New("blob: too many requests")

	// ErrConnection indicates a connection error
	ErrConnection = errors.New("blob: connection error")
)

// IsBlobNotFound checks if an error indicates that a blob was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsBlobNotFound(err error) bool {
	return errors.Is(err, ErrBlobNotFound)
}

// IsAccessDenied checks if an error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsIntegrity checks if an error is an integrity failure (digest or length
// mismatch). Integrity failures are never retryable.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrDigestMismatch) || errors.Is(err, ErrLengthMismatch)
}
