package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound ...
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique key already holds the row
var ErrDuplicate = errors.New("duplicate record")

const mysqlErrDuplicateEntry = 1062

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
		return ErrDuplicate
	}
	return err
}
