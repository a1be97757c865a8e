// Package errs provides the unified error type used across all of sqlpilot.
//
// Every subsystem (catalog, target drivers, validator, export, filestore, …)
// wraps its native errors into *errs.Error before returning them to callers.
// Callers use the Is* predicates to handle errors without importing
// driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "query timed out", pgErr)
//
//	// In a handler, check the error kind:
//	if errs.IsRejected(err) {
//	    http.Error(w, err.Error(), http.StatusForbidden)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown           ErrKind = iota
	ErrKindNotFound                  // unknown connection, table, object
	ErrKindConnectionFailed          // cannot reach the target or backend
	ErrKindTimeout                   // context deadline / cancellation
	ErrKindQueryFailed               // target accepted the connection but rejected the statement
	ErrKindInvalidInput              // bad arguments from the caller
	ErrKindPermissionDenied          // access denied / auth failure
	ErrKindRejected                  // SQL refused by the safety validator
	ErrKindUnsupportedFormat         // export format outside csv/json
	ErrKindNotIndexed                // catalog has no tables for the connection yet
	ErrKindUnavailable               // optional subsystem not configured
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindRejected:
		return "rejected"
	case ErrKindUnsupportedFormat:
		return "unsupported_format"
	case ErrKindNotIndexed:
		return "not_indexed"
	case ErrKindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all sqlpilot subsystems.
// Drivers produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is an execution failure reported by the
// target database itself.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsRejected reports whether err is a safety-validator refusal.
func IsRejected(err error) bool {
	return KindOf(err) == ErrKindRejected
}

// IsUnsupportedFormat reports whether err names an unknown export format.
func IsUnsupportedFormat(err error) bool {
	return KindOf(err) == ErrKindUnsupportedFormat
}

// IsNotIndexed reports whether err means the catalog holds no tables yet.
func IsNotIndexed(err error) bool {
	return KindOf(err) == ErrKindNotIndexed
}

// IsUnavailable reports whether err comes from a subsystem that is switched off.
func IsUnavailable(err error) bool {
	return KindOf(err) == ErrKindUnavailable
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// MessageOf returns the Message of the outermost *Error in the chain, or
// err.Error() when there is none.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
