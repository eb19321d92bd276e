package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidBuild ErrorCode = "validation_invalid_build"
	ErrCodeValidationInvalidPhase ErrorCode = "validation_invalid_phase"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"

	// Payload construction
	ErrCodeBuildSnapshotMissing ErrorCode = "build_snapshot_missing"
	ErrCodeBuildSerialization   ErrorCode = "build_serialization_failed"

	// Delivery
	ErrCodeDeliveryInvalidEndpoint ErrorCode = "delivery_invalid_endpoint"
	ErrCodeDeliveryTransport       ErrorCode = "delivery_transport_failed"
	ErrCodeDeliveryCircuitOpen     ErrorCode = "delivery_circuit_open"
	ErrCodeDeliveryReadBody        ErrorCode = "delivery_read_body_failed"

	// Verification
	ErrCodeResponseParse    ErrorCode = "response_parse_failed"
	ErrCodeResponseRejected ErrorCode = "response_rejected"

	// Internal/Upstream (500/502)
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamQueue      ErrorCode = "upstream_queue_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the relay API to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "build_"):
		return http.StatusUnprocessableEntity // 422
	case strings.HasPrefix(s, "delivery_"), strings.HasPrefix(s, "response_"), strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the module.
// Degraded pipeline steps (serialization, transport, response parsing) are
// reported as AppErrors so callers can see exactly which step gave up.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
