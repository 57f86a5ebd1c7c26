package errors

import (
	"errors"
	"fmt"
)

// GatewayError is the base type for every error the SDK surfaces. Callers
// should match on the concrete subtypes with errors.As; GatewayError itself
// is only produced for unanticipated HTTP statuses.
type GatewayError struct {
	Message    string
	StatusCode int // original HTTP status, 0 when the failure was local
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (http %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

// AuthenticationError means the public key was rejected (HTTP 401).
// Fatal: fix the credential, never retry.
type AuthenticationError struct {
	GatewayError
}

func NewAuthenticationError(message string, statusCode int) *AuthenticationError {
	return &AuthenticationError{GatewayError{Message: message, StatusCode: statusCode}}
}

// ValidationError means the request data was rejected, either by a local
// guard before any network call (StatusCode == 0) or by the gateway
// (HTTP 400). Fatal for the given input; the caller must correct it.
type ValidationError struct {
	GatewayError
	// ErrorType is the gateway-supplied error subtype, when present.
	ErrorType string
}

func NewValidationError(message, errorType string, statusCode int) *ValidationError {
	return &ValidationError{
		GatewayError: GatewayError{Message: message, StatusCode: statusCode},
		ErrorType:    errorType,
	}
}

// NewLocalValidationError reports a guard failure raised before any network
// call was attempted.
func NewLocalValidationError(field, message string) *ValidationError {
	return &ValidationError{
		GatewayError: GatewayError{Message: fmt.Sprintf("%s: %s", field, message)},
	}
}

// NotFoundError means the gateway does not know the transaction (HTTP 404).
// Do not retry with the same transaction id.
type NotFoundError struct {
	GatewayError
}

func NewNotFoundError(message string, statusCode int) *NotFoundError {
	return &NotFoundError{GatewayError{Message: message, StatusCode: statusCode}}
}

// ProcessingError means the gateway failed server-side (HTTP 5xx).
// Transient: retry with backoff.
type ProcessingError struct {
	GatewayError
}

func NewProcessingError(message string, statusCode int) *ProcessingError {
	return &ProcessingError{GatewayError{Message: message, StatusCode: statusCode}}
}

// EncryptionError means the payload codec failed before any network call:
// missing or malformed secret key, or an unserializable payload.
// Fatal configuration error, never retry.
type EncryptionError struct {
	GatewayError
	cause error
}

func NewEncryptionError(message string, cause error) *EncryptionError {
	return &EncryptionError{GatewayError: GatewayError{Message: message}, cause: cause}
}

func (e *EncryptionError) Unwrap() error { return e.cause }

// NetworkError means the request never reached the gateway (timeout,
// connection refused, DNS failure). Safe to retry immediately: no charge
// can have occurred.
type NetworkError struct {
	GatewayError
	cause error
}

func NewNetworkError(message string, cause error) *NetworkError {
	return &NetworkError{GatewayError: GatewayError{Message: message}, cause: cause}
}

func (e *NetworkError) Unwrap() error { return e.cause }

// IsRetriable reports whether the error is safe to retry: NetworkError
// immediately, ProcessingError after backoff. Everything else needs
// caller-side correction.
func IsRetriable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var procErr *ProcessingError
	return errors.As(err, &procErr)
}
