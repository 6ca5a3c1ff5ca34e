package errors

import (
	"fmt"
	"net/http"
)

// Service error codes returned in the machine-readable Code field of error
// response bodies. These mirror the codes the retry and existence-check
// logic dispatches on.
const (
	CodeBlobNotFound      = "BlobNotFound"
	CodeContainerNotFound = "ContainerNotFound"
	CodeAuthFailure       = "AuthenticationFailed"
	CodeDigestMismatch    = "Md5Mismatch"
	CodeInvalidRange      = "InvalidRange"
	CodeServerBusy        = "ServerBusy"
	CodeInternalError     = "InternalError"
	CodeOperationTimedOut = "OperationTimedOut"
)

// RequestError is a typed service error carrying the HTTP status and the
// machine-readable error code parsed from the response body. It is consumed
// by retry classification and existence checks.
type RequestError struct {
	// StatusCode is the HTTP status of the failed response
	StatusCode int

	// Code is the service error code from the response body, if present
	Code string

	// Message is the human-readable message from the response body
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("blob: service error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("blob: service error %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps well-known status/code pairs onto the package sentinels so
// callers can use errors.Is without inspecting status codes.
func (e *RequestError) Unwrap() error {
	switch e.Code {
	case CodeBlobNotFound:
		return ErrBlobNotFound
	case CodeContainerNotFound:
		return ErrContainerNotFound
	case CodeDigestMismatch:
		return ErrDigestMismatch
	case CodeInvalidRange:
		return ErrInvalidRange
	case CodeAuthFailure:
		return ErrAccessDenied
	case CodeServerBusy:
		return ErrTooManyRequests
	}
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrBlobNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return ErrAccessDenied
	case http.StatusTooManyRequests:
		return ErrTooManyRequests
	case http.StatusRequestedRangeNotSatisfiable:
		return ErrInvalidRange
	}
	return nil
}

// Temporary reports whether the failure is transient and a retry with the
// same inputs could succeed. Integrity failures are excluded even when the
// service reports them with a retryable status.
func (e *RequestError) Temporary() bool {
	if e.Code == CodeDigestMismatch {
		return false
	}
	switch e.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// NewRequestError creates a RequestError from a response status and parsed
// error body fields.
func NewRequestError(statusCode int, code, message string) *RequestError {
	return &RequestError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}
