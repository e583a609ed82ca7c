// Package apierror defines the JSON envelope returned by every API route and
// the fiber error handler that maps domain errors onto it.
package apierror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

const (
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeForbidden            = "FORBIDDEN"
	CodeValidation           = "VALIDATION_ERROR"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeNotFound             = "NOT_FOUND"
	CodeNoCustomer           = "NO_CUSTOMER"
	CodeRateLimited          = "RATE_LIMITED"
	CodePaymentProviderError = "PAYMENT_PROVIDER_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
)

// Envelope is the response shape shared by all endpoints.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Body       `json:"error,omitempty"`
}

// Body describes a failed request.
type Body struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []FieldDetail `json:"details,omitempty"`
}

// FieldDetail points a validation message at a request field.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is an API error with a fixed status and code.
type Error struct {
	Status  int
	Code    string
	Message string
	Details []FieldDetail
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an API error.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func Unauthorized(message string) *Error {
	return New(fiber.StatusUnauthorized, CodeUnauthorized, message)
}

func InvalidToken(message string) *Error {
	return New(fiber.StatusUnauthorized, CodeInvalidToken, message)
}

func Forbidden(message string) *Error {
	return New(fiber.StatusForbidden, CodeForbidden, message)
}

func NotFound(message string) *Error {
	return New(fiber.StatusNotFound, CodeNotFound, message)
}

func InvalidSignature(message string) *Error {
	return New(fiber.StatusBadRequest, CodeInvalidSignature, message)
}

func RateLimited(message string) *Error {
	return New(fiber.StatusTooManyRequests, CodeRateLimited, message)
}

// Internal wraps err so it is logged but never shown to the client.
func Internal(err error) *Error {
	return &Error{Status: fiber.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error", Err: err}
}

// ValidationError carries per-field problems with a request.
type ValidationError struct {
	Message string
	Details []FieldDetail
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// Validation builds a ValidationError for a single field.
func Validation(field, message string) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: []FieldDetail{{Field: field, Message: message}},
	}
}

// Add appends a field problem and returns the receiver.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Details = append(e.Details, FieldDetail{Field: field, Message: message})
	return e
}

// HasErrors reports whether any field problem was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Details) > 0
}

// OK writes a successful envelope with the given status.
func OK(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(Envelope{Success: true, Data: data})
}

// Write renders e as the failure envelope.
func Write(c *fiber.Ctx, e *Error) error {
	return c.Status(e.Status).JSON(Envelope{
		Success: false,
		Error: &Body{
			Code:    e.Code,
			Message: e.Message,
			Details: e.Details,
		},
	})
}

// Mapper converts domain errors that this package does not know about.
// It returns nil when err is not recognised.
type Mapper func(err error) *Error

// From resolves any error into an API error using the given mappers first.
func From(err error, mappers ...Mapper) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		msg := vErr.Message
		if msg == "" || len(vErr.Details) > 1 {
			msg = "Request validation failed"
		}
		return &Error{Status: fiber.StatusBadRequest, Code: CodeValidation, Message: msg, Details: vErr.Details}
	}

	for _, m := range mappers {
		if mapped := m(err); mapped != nil {
			return mapped
		}
	}

	var fErr *fiber.Error
	if errors.As(err, &fErr) {
		return fromFiber(fErr)
	}

	return Internal(err)
}

func fromFiber(fErr *fiber.Error) *Error {
	switch fErr.Code {
	case fiber.StatusNotFound:
		return &Error{Status: fErr.Code, Code: CodeNotFound, Message: fErr.Message}
	case fiber.StatusUnauthorized:
		return &Error{Status: fErr.Code, Code: CodeUnauthorized, Message: fErr.Message}
	case fiber.StatusForbidden:
		return &Error{Status: fErr.Code, Code: CodeForbidden, Message: fErr.Message}
	case fiber.StatusTooManyRequests:
		return &Error{Status: fErr.Code, Code: CodeRateLimited, Message: fErr.Message}
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge, fiber.StatusUnsupportedMediaType:
		return &Error{Status: fErr.Code, Code: CodeValidation, Message: fErr.Message}
	}
	if fErr.Code >= 500 {
		return Internal(fErr)
	}
	return &Error{Status: fErr.Code, Code: CodeValidation, Message: fErr.Message}
}
