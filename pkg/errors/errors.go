package errors

import (
	"context"
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")
)

// Orchestration errors

var (
	// ErrInvalidWorkflow indicates the requested workflow resolves to no agents
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrUpstreamUnavailable indicates an agent or its data source could not serve the call
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrBudgetExhausted indicates the agent's call budget for the current window is spent
	ErrBudgetExhausted = errors.New("call budget exhausted")

	// ErrAgentUnhealthy indicates the supervisor reports the agent as unreachable
	ErrAgentUnhealthy = errors.New("agent unhealthy")
)

// Wire reasons reported in failed agent results and error responses.
const (
	ReasonInvalidInput        = "InvalidInput"
	ReasonInvalidWorkflow     = "InvalidWorkflow"
	ReasonUpstreamUnavailable = "UpstreamUnavailable"
	ReasonBudgetExhausted     = "BudgetExhausted"
	ReasonAgentUnhealthy      = "AgentUnhealthy"
	ReasonInternal            = "Internal"
)

// Classify maps an error to its wire reason.
// Timeouts and cancellations count as upstream unavailability.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidWorkflow):
		return ReasonInvalidWorkflow
	case errors.Is(err, ErrInvalidInput):
		return ReasonInvalidInput
	case errors.Is(err, ErrBudgetExhausted):
		return ReasonBudgetExhausted
	case errors.Is(err, ErrAgentUnhealthy):
		return ReasonAgentUnhealthy
	case errors.Is(err, ErrUpstreamUnavailable),
		errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ReasonUpstreamUnavailable
	default:
		return ReasonInternal
	}
}

// ValidationError represents a validation error with field-specific details.
// It matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Is reports ErrInvalidInput as the category of every validation error
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Unwrap exposes the collected errors to errors.Is / errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
