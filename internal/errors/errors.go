// Package errors provides error classification utilities for the socket gateway.
// It includes error wrapping, typing and context management.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the category of an error.
type ErrorType string

const (
	// Stack capture configuration.
	stackSkipFrames = 2
	maxStackDepth   = 10

	// Error types for classification.
	TypeValidation  ErrorType = "VALIDATION"
	TypeDecode      ErrorType = "DECODE"
	TypeRejected    ErrorType = "REJECTED"
	TypeInternal    ErrorType = "INTERNAL"
	TypeUnavailable ErrorType = "UNAVAILABLE"
	TypeBind        ErrorType = "BIND"
)

// Severity is the error severity level.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// GatewayError is the base error type for all gateway errors.
type GatewayError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Stack      []string               `json:"stack,omitempty"`
	Severity   Severity               `json:"severity"`
	HTTPStatus int                    `json:"http_status,omitempty"`
	Component  string                 `json:"component,omitempty"`
	Operation  string                 `json:"operation,omitempty"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	var b strings.Builder

	if e.Component != "" {
		b.WriteString("[")
		b.WriteString(e.Component)
		b.WriteString("] ")
	}

	if e.Operation != "" {
		b.WriteString(e.Operation)
		b.WriteString(": ")
	}

	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap returns the underlying cause of the error.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	if !ok {
		return false
	}

	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context information to the error.
func (e *GatewayError) WithContext(key string, value interface{}) *GatewayError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}

	e.Context[key] = value

	return e
}

// WithCode sets the machine readable error code.
func (e *GatewayError) WithCode(code string) *GatewayError {
	e.Code = code

	return e
}

// WithOperation sets the operation that caused the error.
func (e *GatewayError) WithOperation(operation string) *GatewayError {
	e.Operation = operation

	return e
}

// WithComponent sets the component that generated the error.
func (e *GatewayError) WithComponent(component string) *GatewayError {
	e.Component = component

	return e
}

// WithHTTPStatus sets the HTTP status code for the error.
func (e *GatewayError) WithHTTPStatus(status int) *GatewayError {
	e.HTTPStatus = status

	return e
}

// New creates a new GatewayError with stack trace.
func New(errType ErrorType, message string) *GatewayError {
	return &GatewayError{
		Type:     errType,
		Message:  message,
		Stack:    captureStack(stackSkipFrames),
		Severity: getSeverityForType(errType),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, message string) *GatewayError {
	if err == nil {
		return nil
	}

	// Preserve the classification of an existing GatewayError
	var ge *GatewayError
	if errors.As(err, &ge) {
		return &GatewayError{
			Type:       ge.Type,
			Message:    message,
			Code:       ge.Code,
			Cause:      ge,
			Context:    ge.Context,
			Stack:      captureStack(stackSkipFrames),
			Severity:   ge.Severity,
			HTTPStatus: ge.HTTPStatus,
			Component:  ge.Component,
			Operation:  ge.Operation,
		}
	}

	return &GatewayError{
		Type:     TypeInternal,
		Message:  message,
		Cause:    err,
		Stack:    captureStack(stackSkipFrames),
		Severity: SeverityMedium,
	}
}

// WrapWithType wraps an error with a specific type.
func WrapWithType(err error, errType ErrorType, message string) *GatewayError {
	if err == nil {
		return nil
	}

	return &GatewayError{
		Type:     errType,
		Message:  message,
		Cause:    err,
		Stack:    captureStack(stackSkipFrames),
		Severity: getSeverityForType(errType),
	}
}

// Wrapf wraps an error with formatted message.
func Wrapf(err error, format string, args ...interface{}) *GatewayError {
	if err == nil {
		return nil
	}

	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Type == errType
	}

	return false
}

// GetHTTPStatus returns the appropriate HTTP status code for an error.
func GetHTTPStatus(err error) int {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return http.StatusInternalServerError
	}

	if ge.HTTPStatus > 0 {
		return ge.HTTPStatus
	}

	switch ge.Type {
	case TypeValidation, TypeDecode:
		return http.StatusBadRequest
	case TypeRejected:
		return http.StatusForbidden
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	case TypeInternal, TypeBind:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func captureStack(skip int) []string {
	var stack []string

	for i := skip; i < skip+maxStackDepth; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn != nil {
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}

	return stack
}

func getSeverityForType(errType ErrorType) Severity {
	switch errType {
	case TypeInternal:
		return SeverityHigh
	case TypeBind:
		return SeverityCritical
	case TypeValidation, TypeDecode, TypeRejected:
		return SeverityLow
	case TypeUnavailable:
		return SeverityMedium
	default:
		return SeverityMedium
	}
}

// NewValidationError creates a configuration or input validation error.
func NewValidationError(message string) *GatewayError {
	return New(TypeValidation, message).WithHTTPStatus(http.StatusBadRequest)
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *GatewayError {
	return New(TypeInternal, message).WithHTTPStatus(http.StatusInternalServerError)
}
