// Package repository implements MySQL persistence for events, their
// reservations and the address read model. Repositories resolve their
// executor from the context: inside UnitOfWork.Do they run on the
// transaction, otherwise on the pool.
//
// Driver errors that carry domain meaning are translated to the sentinels
// in internal/model so handlers never see a *mysql.MySQLError.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when an insert collides with an existing primary
// key. Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrNoTransaction is returned by locking reads called outside UnitOfWork.Do.
var ErrNoTransaction = errors.New("locking read requires a transaction")

const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errLockNowait      = 3572
)

func mysqlErrorNumber(err error) uint16 {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}

func isDuplicateKey(err error) bool { return mysqlErrorNumber(err) == errDupEntry }

// isLockContention covers the lock errors InnoDB raises when a row lock is
// not granted: a timed-out wait or a NOWAIT read.
func isLockContention(err error) bool {
	n := mysqlErrorNumber(err)
	return n == errLockWaitTimeout || n == errLockNowait
}
