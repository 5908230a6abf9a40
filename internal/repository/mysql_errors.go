package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the seat store reacts to.
const (
	mysqlDupEntry        = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlTooManyConns    = 1040
	mysqlServerShutdown  = 1053
)

// isDuplicateKey reports whether err is a unique index violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDupEntry
}

// isTransient reports whether err is a connectivity or lock-contention
// failure that a caller may retry.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDeadlock, mysqlLockWaitTimeout, mysqlTooManyConns, mysqlServerShutdown:
			return true
		}
		return false
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// classify wraps err with ErrTransient when it is a storage fault.  Other
// errors are annotated with op and returned as is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
