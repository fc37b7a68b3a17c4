package client

import "fmt"

// UnexpectedErrorMessage is shown for transport failures.
const UnexpectedErrorMessage = "An unexpected error occurred. Is the analysis service reachable?"

// ServiceError is a well-formed error reported by the analysis service, or a
// response that violates the service contract.
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
}

// Error returns the service message verbatim.
func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a ServiceError without an HTTP status.
func NewServiceError(op, message string) *ServiceError {
	return &ServiceError{Op: op, Message: message}
}

// TransportError covers network failures and malformed responses.
type TransportError struct {
	Op    string
	Cause error
}

// Error returns the generic user-facing message.
func (e *TransportError) Error() string {
	return UnexpectedErrorMessage
}

// Unwrap allows errors.Is and errors.As to reach the cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Detail includes the cause, for logs.
func (e *TransportError) Detail() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, UnexpectedErrorMessage)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}
