package repos

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned by inserts that hit a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

func isUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// primary code only when extended codes are off
			return strings.Contains(se.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}

func translate(err error) error {
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}
