package database

import (
	"context"
	"errors"

	"github.com/koustreak/sqlpilot/internal/errs"
)

// --- Constructor helpers used by drivers ---

func errConnection(msg string, cause error) *errs.Error {
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, cause)
}

func errQuery(msg string, cause error) *errs.Error {
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, cause)
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, cause)
}

func errInvalidInput(msg string) *errs.Error {
	return errs.New(errs.ErrKindInvalidInput, msg)
}

// MapContextError returns a Timeout error when err comes from ctx, or nil.
// Drivers call it first in their own mapError.
func MapContextError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	return nil
}

// ConnectionError wraps a failure to open a session. A connect deadline
// counts as unreachable, not as a query timeout.
func ConnectionError(msg string, cause error) *errs.Error {
	return errConnection(msg, cause)
}
