// Package errors provides the unified error type and factory functions for
// molscore. Every layer (chemistry toolkit, scorers, infrastructure,
// interfaces) reports failures as *AppError so that HTTP responses, CLI exit
// messages and logs carry the same structured code.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the single structured error type used throughout molscore.
// It supports Go 1.13+ wrapping so errors.Is / errors.As / errors.Unwrap work
// across layers.
//
// Usage:
//
//	return errors.New(errors.ErrCodeScorerNotFound, "unknown scoring function")
//	return errors.Wrap(err, errors.ErrCodeResourceUnavailable, "failed to load classifier")
type AppError struct {
	// Code is the typed error code that identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description.
	Message string

	// Detail carries supplementary context such as the list of valid scorer
	// names or the resource location that failed to load.
	Detail string

	// Cause is the underlying error, if any.
	Cause error

	// Stack is the call stack captured at construction. It is not part of
	// Error() output.
	Stack string
}

// Error implements the error interface.
// Format: "[<code>] <message>: <detail>: <cause>"; empty segments are omitted.
func (e *AppError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code.String(), e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Factories
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf is New with fmt.Sprintf formatting of the message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps err. A nil err yields nil so Wrap
// can be used inline. When code is CodeUnknown and err already carries an
// AppError, the original code is preserved.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// InvalidParam constructs an ErrCodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidParam,
		Message: message,
		Stack:   captureStack(1),
	}
}

// NotFound constructs an ErrCodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Internal constructs an ErrCodeInternal AppError.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Stack:   captureStack(1),
	}
}

// UnknownScorer constructs the factory-time failure for an unregistered
// scorer name. The valid names are attached as Detail.
func UnknownScorer(name string, valid []string) *AppError {
	return &AppError{
		Code:    ErrCodeScorerNotFound,
		Message: fmt.Sprintf("unknown scoring function %q", name),
		Detail:  fmt.Sprintf("scoring function must be one of [%s]", strings.Join(valid, ", ")),
		Stack:   captureStack(1),
	}
}

// ResourceUnavailable wraps a construction-time resource load failure.
func ResourceUnavailable(err error, location string) *AppError {
	return &AppError{
		Code:    ErrCodeResourceUnavailable,
		Message: "resource unavailable",
		Detail:  location,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error-chain inspection
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) {
			if ae.Code == code {
				return true
			}
			err = ae.Cause
			continue
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err carries ErrCodeNotFound.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound)
}

// IsUnknownScorer reports whether err is a factory-time unknown scorer failure.
func IsUnknownScorer(err error) bool {
	return IsCode(err, ErrCodeScorerNotFound)
}

// IsResourceUnavailable reports whether err is a resource load failure.
func IsResourceUnavailable(err error) bool {
	return IsCode(err, ErrCodeResourceUnavailable)
}

// GetCode extracts the code of the first *AppError in err's chain.
// A nil error yields CodeOK; an error without an AppError yields CodeUnknown.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// Is and As re-export the standard library helpers so callers importing this
// package under the name "errors" keep access to them.
func Is(err, target error) bool { return errors.Is(err, target) }

// As re-exports errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }
