package analysis

import (
	"context"
	"errors"

	"github.com/leapstack-labs/csvscope/internal/client"
)

// ErrSuperseded is returned when a response arrives for a request that a
// newer request, a reset or a file switch has made stale. Nothing is applied.
var ErrSuperseded = errors.New("request superseded")

// Kind classifies an error for presentation.
type Kind int

const (
	// KindNone means no error.
	KindNone Kind = iota
	// KindValidation is a local check that failed before any network call.
	KindValidation
	// KindService is an error reported by the analysis service, or a
	// response that breaks the service contract.
	KindService
	// KindTransport is a network failure or malformed response.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindService:
		return "service"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// ValidationError is a local validation failure. No request was sent.
type ValidationError struct {
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap allows errors.Is and errors.As to reach the cause.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func validationError(msg string) error {
	return &ValidationError{Message: msg}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var se *client.ServiceError
	if errors.As(err, &se) {
		return KindService
	}
	return KindTransport
}

// IsSuperseded reports whether err only means a newer request took over.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}

func contractError(op, msg string) error {
	return client.NewServiceError(op, msg)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
