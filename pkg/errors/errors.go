// Package errors provides structured error handling for quack.
//
// Every failure that crosses a component boundary carries an ErrorType so the
// caller can decide whether the triggering statement must abort (unsupported
// types, lazy open failures, conversion failures) or whether the failure can
// only be reported (commit-time finalize failures).
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeDirectoryConfig represents data directory validation failures at startup
	ErrorTypeDirectoryConfig ErrorType = "directory_config"
	// ErrorTypeUnsupportedType represents a host column type with no engine mapping
	ErrorTypeUnsupportedType ErrorType = "unsupported_type"
	// ErrorTypeConversion represents a value that cannot be converted without loss
	ErrorTypeConversion ErrorType = "conversion"
	// ErrorTypeEngineOpen represents a failure to open or create an engine database file
	ErrorTypeEngineOpen ErrorType = "engine_open"
	// ErrorTypeEngineConnect represents a failure to connect to an open engine database
	ErrorTypeEngineConnect ErrorType = "engine_connect"
	// ErrorTypeAppenderCreate represents a failure to bind an appender to a table
	ErrorTypeAppenderCreate ErrorType = "appender_create"
	// ErrorTypeQueryExecution represents a failed statement inside the engine
	ErrorTypeQueryExecution ErrorType = "query_execution"
	// ErrorTypeFinalize represents a failure while flushing or committing buffered rows
	ErrorTypeFinalize ErrorType = "finalize"
	// ErrorTypeLock represents advisory lock acquisition failures
	ErrorTypeLock ErrorType = "lock"
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
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
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
		Message: fmt.Sprintf(format, args...),
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

// IsType checks if the error is of the given type. Only the outermost
// structured error is consulted.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost structured error, or
// ErrorTypeInternal for plain errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// IsFatal reports whether the error must abort the triggering statement.
// Only finalize failures are report-only: they surface after the host has
// already decided to commit.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return TypeOf(err) != ErrorTypeFinalize
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
