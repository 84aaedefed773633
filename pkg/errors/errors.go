// Package errors provides structured error handling for quiver
package errors

import (
	"errors"
	"runtime"

	stringpool "github.com/ajitpratap0/quiver/pkg/strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeSchemaInference represents failures to infer a field tree from
	// an event stream: irreconcilable scalar kinds, a root that is not a
	// record collection, or a schema left undetermined by the records
	ErrorTypeSchemaInference ErrorType = "schema_inference"
	// ErrorTypeCompilation represents field trees that cannot be lowered to a
	// buffer program, e.g. unsupported nested nullability
	ErrorTypeCompilation ErrorType = "compilation"
	// ErrorTypeInterpreter represents event sequences that do not match the
	// shape implied by the compiled program
	ErrorTypeInterpreter ErrorType = "interpreter"
	// ErrorTypeDataIntegrity represents corrupt columnar input: out-of-range
	// or non-monotonic offsets, or mismatched buffer lengths
	ErrorTypeDataIntegrity ErrorType = "data_integrity"
	// ErrorTypeValidation represents API misuse outside the conversion core
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithField records the field path the error occurred at. Every failure
// inside tracing, compilation or interpretation carries this detail.
func (e *Error) WithField(path string) *Error {
	return e.WithDetail("field", path)
}

// Field returns the recorded field path, or "" if none was attached.
func (e *Error) Field() string {
	if e.Details == nil {
		return ""
	}
	if path, ok := e.Details["field"].(string); ok {
		return path
	}
	return ""
}

// Field returns the field path recorded on err, or "" when err carries none.
func Field(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Field()
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: stringpool.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// As is a convenience re-export of the standard errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
