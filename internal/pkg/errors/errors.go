// Package errors extends the standard errors package with type-based
// classification and error chaining.
//
// Every error carries an ErrorType; Wrap accumulates context while keeping
// the chain intact so callers can branch on the classification:
//
//	if errors.Is(err, errors.Conflict) {
//	    // duplicate creation, recover via lookup
//	}
//
// RootCause walks to the innermost error, UnderlyingType to the innermost
// AppError's type. Both are used when deciding whether a failure is worth
// retrying.
package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// AppError is the standard error representation for the application.
type AppError struct {
	errType ErrorType
	message string
	cause   error
	stack   []StackFrame
}

// Type returns the error classification.
func (e *AppError) Type() ErrorType {
	return e.errType
}

// Message returns the error message without the cause chain.
func (e *AppError) Message() string {
	return e.message
}

// Stack returns the call stack captured when the error was created.
func (e *AppError) Stack() []StackFrame {
	return e.stack
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.errType, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.errType, e.message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Format implements fmt.Formatter. %+v prints the error chain and, at the
// chain boundary (root error or wrapped foreign error), the stack trace.
func (e *AppError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "[%s] %s", e.errType, e.message)

			// Print the stack only at the root or where an external error
			// enters the chain; intermediate wrappers would duplicate it.
			var target *AppError
			if e.cause == nil || !errors.As(e.cause, &target) {
				if len(e.stack) > 0 {
					fmt.Fprint(s, "\nStack trace:")
					for _, frame := range e.stack {
						funcName := frame.Function
						if idx := strings.LastIndex(funcName, "/"); idx != -1 {
							funcName = funcName[idx+1:]
						}
						fmt.Fprintf(s, "\n\t%s:%d %s", frame.File, frame.Line, funcName)
					}
				}
			}

			if e.cause != nil {
				fmt.Fprint(s, "\nCaused by:\n")
				if formatter, ok := e.cause.(fmt.Formatter); ok {
					formatter.Format(s, verb)
				} else {
					fmt.Fprintf(s, "\t%v", e.cause)
				}
			}
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// New creates a new classified error.
func New(errType ErrorType, message string) error {
	return &AppError{
		errType: errType,
		message: message,
		stack:   captureStack(defaultCallerSkip),
	}
}

// Newf creates a new classified error from a format string.
func Newf(errType ErrorType, format string, args ...any) error {
	return &AppError{
		errType: errType,
		message: fmt.Sprintf(format, args...),
		stack:   captureStack(defaultCallerSkip),
	}
}

// Wrap wraps an existing error with additional context. Returns nil when
// err is nil.
func Wrap(err error, errType ErrorType, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		errType: errType,
		message: message,
		cause:   err,
		stack:   captureStack(defaultCallerSkip),
	}
}

// Wrapf wraps an existing error using a format string.
func Wrapf(err error, errType ErrorType, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &AppError{
		errType: errType,
		message: fmt.Sprintf(format, args...),
		cause:   err,
		stack:   captureStack(defaultCallerSkip),
	}
}

// Is reports whether the chain contains an AppError of the given type.
func Is(err error, errType ErrorType) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			if appErr.errType == errType {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// As is a passthrough to the standard errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// RootCause returns the innermost error of the chain.
func RootCause(err error) error {
	if err == nil {
		return nil
	}

	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}

// UnderlyingType returns the ErrorType of the innermost AppError in the
// chain, or Unknown when the chain contains none. Useful when a foreign
// error (net.Error, context.DeadlineExceeded) was classified at the point
// it entered the application and later wrapped again.
func UnderlyingType(err error) ErrorType {
	var last ErrorType = Unknown

	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			last = appErr.errType
		}
		err = errors.Unwrap(err)
	}

	return last
}
