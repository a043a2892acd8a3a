package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput required fields are missing or invalid
	ErrInvalidInput = errors.New("invalid input data")

	// ErrInvalidPlan plan is not in the fixed enumeration
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrMalformedReference external reference cannot be parsed; the
	// transaction it belongs to must not be processed
	ErrMalformedReference = errors.New("malformed external reference")

	// ErrInternal internal error
	ErrInternal = errors.New("internal error")
)

// ExternalServiceError carries a non-success response from the payment
// gateway verbatim: upstream status code plus raw provider payload.
type ExternalServiceError struct {
	Service     string
	StatusCode  int
	Payload     string
	OriginalErr error
}

func (e *ExternalServiceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s error (status %d): %v", e.Service, e.StatusCode, e.OriginalErr)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Service, e.StatusCode, e.Payload)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.OriginalErr
}

// NewExternalServiceError creates an error for an upstream failure.
func NewExternalServiceError(service string, statusCode int, payload string, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:     service,
		StatusCode:  statusCode,
		Payload:     payload,
		OriginalErr: err,
	}
}
