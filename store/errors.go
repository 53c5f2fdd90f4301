package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrConnection means the database could not be reached. The caller may retry.
	ErrConnection = errors.New("database unreachable")
	// ErrSchema means a statement was rejected for a reason other than a constraint, such as a missing table.
	ErrSchema = errors.New("database statement rejected")
	// ErrConstraint means the database refused the row (NOT NULL, CHECK, UNIQUE).
	ErrConstraint = errors.New("database constraint violated")
	// ErrUninitialized means Initialize has not been called on the store.
	ErrUninitialized = errors.New("store is not initialized")
	// ErrInvalidLimit means ListRecent was asked for zero or fewer rows.
	ErrInvalidLimit = errors.New("limit must be greater than 0")
)

// mysql error numbers for rejected rows.
var mysqlConstraintErrors = map[uint16]struct{}{
	1048: {}, // column cannot be null
	1062: {}, // duplicate entry
	1364: {}, // field has no default value
	1406: {}, // data too long for column
	3819: {}, // check constraint violated
	4025: {}, // check constraint violated (MariaDB)
}

// classify wraps err with ErrConnection, ErrConstraint or ErrSchema.
// op names the failed operation in the message.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", kind(err), op, err)
}

func kind(err error) error {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return ErrConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrConnection
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23":
			return ErrConstraint
		case "08", "57":
			return ErrConnection
		}
		return ErrSchema
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if _, ok := mysqlConstraintErrors[myErr.Number]; ok {
			return ErrConstraint
		}
		return ErrSchema
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrConstraint:
			return ErrConstraint
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB:
			return ErrConnection
		}
		return ErrSchema
	}
	return ErrSchema
}
