package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/go-sql-driver/mysql"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

// MySQL server error numbers that mean the store is not usable as configured.
// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlErrDBAccessDenied = 1044 // Access denied for user to database
	mysqlErrAccessDenied   = 1045 // Access denied for user (using password)
	mysqlErrBadDB          = 1049 // Unknown database
)

// Classify tags err with core.ErrUnavailable when the failure signal says the
// store cannot be reached or refused the session. Other errors are returned
// unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, core.ErrUnavailable) {
		return err
	}
	if IsUnavailable(err) {
		return fmt.Errorf("%w: %w", core.ErrUnavailable, err)
	}
	return err
}

// IsUnavailable reports whether err comes from a lost, refused or
// misconfigured connection rather than from the statement itself.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.EHOSTUNREACH):
		return true
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDBAccessDenied, mysqlErrAccessDenied, mysqlErrBadDB:
			return true
		}
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
