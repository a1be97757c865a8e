package mysql

import (
	"database/sql/driver"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errAccessDenied      = 1045
	errUnknownDatabase   = 1049
	errDBAccessDenied    = 1044
	errConnRefused       = 2003
	errQueryInterrupted  = 1317
	errMaxExecutionTime  = 3024
	errServerGone        = 2006
	errServerLostConnect = 2013
)

// mapError converts a MySQL driver error into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if e := database.MapContextError(err, msg); e != nil {
		return e
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		kind := errs.ErrKindQueryFailed
		switch mysqlErr.Number {
		case errAccessDenied, errDBAccessDenied, errUnknownDatabase, errConnRefused, errServerGone, errServerLostConnect:
			kind = errs.ErrKindConnectionFailed
		case errQueryInterrupted, errMaxExecutionTime:
			kind = errs.ErrKindTimeout
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, mysqlErr.Message), err)
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("%s: %s", msg, err.Error()), err)
}
