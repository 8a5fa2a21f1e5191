package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of an error
type ErrorType uint

const (
	// ErrorTypeUnknown represents an unknown error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidArgument represents an invalid argument error
	ErrorTypeInvalidArgument
	// ErrorTypeInvalidContract represents a contract that violates the pricing preconditions
	ErrorTypeInvalidContract
	// ErrorTypeDataUnavailable represents a price-history query that returned no rows
	ErrorTypeDataUnavailable
	// ErrorTypeNumericOverflow represents inputs that push an engine outside float64 range
	ErrorTypeNumericOverflow
	// ErrorTypeNotFound represents a not found error
	ErrorTypeNotFound
	// ErrorTypeNetwork represents a network error
	ErrorTypeNetwork
	// ErrorTypeTimeout represents a timeout error
	ErrorTypeTimeout
	// ErrorTypeInternal represents an internal error
	ErrorTypeInternal
	// ErrorTypeResourceExhausted represents a resource exhausted error
	ErrorTypeResourceExhausted
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeInvalidArgument:
		return "invalid_argument"
	case ErrorTypeInvalidContract:
		return "invalid_contract"
	case ErrorTypeDataUnavailable:
		return "data_unavailable"
	case ErrorTypeNumericOverflow:
		return "numeric_overflow"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeInternal:
		return "internal"
	case ErrorTypeResourceExhausted:
		return "resource_exhausted"
	default:
		return "unknown"
	}
}

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new error with the given message
func New(message string) error {
	return &AppError{
		Type:    ErrorTypeUnknown,
		Message: message,
	}
}

// Newf creates a new error with the given format and arguments
func Newf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeUnknown,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a message. The type of the innermost AppError is kept.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    TypeOf(err),
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithType returns err tagged with errType, keeping err in the chain
func WithType(err error, errType ErrorType) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type: errType,
		Err:  err,
	}
}

// TypeOf returns the type of the first AppError in err's chain
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether the first AppError in err's chain has type t
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// Is reports whether err or any of the errors in its chain is target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// InvalidArgument creates a new InvalidArgument error
func InvalidArgument(message string) error {
	return &AppError{
		Type:    ErrorTypeInvalidArgument,
		Message: message,
	}
}

// InvalidArgumentf creates a new InvalidArgument error with a formatted message
func InvalidArgumentf(format string, args ...interface{}) error {
	return InvalidArgument(fmt.Sprintf(format, args...))
}

// InvalidContract creates a new InvalidContract error
func InvalidContract(message string) error {
	return &AppError{
		Type:    ErrorTypeInvalidContract,
		Message: message,
	}
}

// DataUnavailable creates a new DataUnavailable error
func DataUnavailable(message string) error {
	return &AppError{
		Type:    ErrorTypeDataUnavailable,
		Message: message,
	}
}

// NumericOverflow creates a new NumericOverflow error
func NumericOverflow(message string) error {
	return &AppError{
		Type:    ErrorTypeNumericOverflow,
		Message: message,
	}
}

// NotFound creates a new NotFound error
func NotFound(message string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// Network creates a new Network error
func Network(message string) error {
	return &AppError{
		Type:    ErrorTypeNetwork,
		Message: message,
	}
}

// Timeout creates a new Timeout error
func Timeout(message string) error {
	return &AppError{
		Type:    ErrorTypeTimeout,
		Message: message,
	}
}

// Internal creates a new Internal error
func Internal(message string) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
	}
}

// ResourceExhausted creates a new ResourceExhausted error
func ResourceExhausted(message string) error {
	return &AppError{
		Type:    ErrorTypeResourceExhausted,
		Message: message,
	}
}
