// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-jobs.

package api

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidGroup
	ErrCodeJobFailed
	ErrCodePoolMisconfigured
	ErrCodeCancelled
	ErrCodePoolClosed
	ErrCodeJobPanicked
	ErrCodeInvalidArgument
)

// String returns the short name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidGroup:
		return "invalid_group"
	case ErrCodeJobFailed:
		return "job_failed"
	case ErrCodePoolMisconfigured:
		return "pool_misconfigured"
	case ErrCodeCancelled:
		return "cancelled"
	case ErrCodePoolClosed:
		return "pool_closed"
	case ErrCodeJobPanicked:
		return "job_panicked"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Sentinel errors. Match with errors.Is; any *Error carrying the same code
// matches its sentinel.
var (
	ErrInvalidGroup      = NewError(ErrCodeInvalidGroup, "invalid worker group")
	ErrJobFailed         = NewError(ErrCodeJobFailed, "job failed")
	ErrPoolMisconfigured = NewError(ErrCodePoolMisconfigured, "pool misconfigured")
	ErrCancelled         = NewError(ErrCodeCancelled, "job cancelled")
	ErrPoolClosed        = NewError(ErrCodePoolClosed, "pool is closed")
	ErrJobPanicked       = NewError(ErrCodeJobPanicked, "job panicked")
	ErrInvalidArgument   = NewError(ErrCodeInvalidArgument, "invalid argument")
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if len(e.Context) > 0 {
		msg = fmt.Sprintf("%s (context: %+v)", msg, e.Context)
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithContext returns a copy of e with key set in its context map.
// Sentinels are shared, so the receiver is never mutated.
func (e *Error) WithContext(key string, value any) *Error {
	cp := *e
	cp.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	cp.Context[key] = value
	return &cp
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// CodeOf extracts the code of the first *Error in err's chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeJobFailed
}
