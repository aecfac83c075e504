package errors

import (
	"errors"
	"fmt"
)

// Error kinds shared by every venue adapter. Adapters classify raw venue
// failures into exactly one of these before returning to the caller.

var (
	// ErrSigning indicates a signed request could not be constructed
	ErrSigning = errors.New("request signing failed")

	// ErrClockSkew indicates the venue rejected the request timestamp
	ErrClockSkew = errors.New("request timestamp outside venue window")

	// ErrAuth indicates the venue rejected the credentials
	ErrAuth = errors.New("authentication rejected")

	// ErrPermission indicates the credential lacks capability for the operation
	ErrPermission = errors.New("operation not permitted for credential")

	// ErrOrderValidation indicates a locally detected invalid order
	ErrOrderValidation = errors.New("order validation failed")

	// ErrVenueBusiness indicates the venue rejected the request for a business reason
	ErrVenueBusiness = errors.New("venue business rule rejection")

	// ErrNetwork indicates a transport-level failure
	ErrNetwork = errors.New("network failure")

	// ErrTimeout indicates a request deadline was exceeded
	ErrTimeout = errors.New("request timeout")

	// ErrUnmappedVenue indicates a venue error shape the adapter does not recognize
	ErrUnmappedVenue = errors.New("unrecognized venue error")

	// ErrPrecisionUnderflow indicates a nonzero value rounded to zero
	ErrPrecisionUnderflow = errors.New("value rounds to zero at venue precision")

	// ErrConfig indicates invalid venue or market configuration data
	ErrConfig = errors.New("invalid configuration")

	// ErrNotSupported indicates the venue does not support the operation
	ErrNotSupported = errors.New("operation not supported by venue")
)

// VenueError carries a classified venue failure together with the raw
// payload the venue returned. Raw is preserved verbatim for diagnosis and
// must never be discarded during classification.
type VenueError struct {
	Kind    error
	Venue   string
	Code    string
	Message string
	Raw     string
}

// Error implements the error interface
func (e *VenueError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %v: code=%s msg=%s", e.Venue, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %v: %s", e.Venue, e.Kind, e.Message)
}

// Unwrap returns the error kind so errors.Is matches against the sentinels
func (e *VenueError) Unwrap() error {
	return e.Kind
}

// NewVenueError creates a classified venue error
func NewVenueError(kind error, venue, code, message, raw string) *VenueError {
	return &VenueError{
		Kind:    kind,
		Venue:   venue,
		Code:    code,
		Message: message,
		Raw:     raw,
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap makes every validation error match ErrOrderValidation
func (e *ValidationError) Unwrap() error {
	return ErrOrderValidation
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
