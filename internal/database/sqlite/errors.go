package sqlite

import (
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
)

// mapError converts a modernc sqlite error into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if e := database.MapContextError(err, msg); e != nil {
		return e
	}

	var sqErr *msqlite.Error
	if errors.As(err, &sqErr) {
		kind := errs.ErrKindQueryFailed
		// Primary result code lives in the low byte.
		switch sqErr.Code() & 0xff {
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB:
			kind = errs.ErrKindConnectionFailed
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_INTERRUPT:
			kind = errs.ErrKindTimeout
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, sqErr.Error()), err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("%s: %s", msg, err.Error()), err)
}
