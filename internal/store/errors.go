package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

// classify wraps a driver error with the domain kind it represents.
// sql.ErrNoRows passes through untouched so callers can map absence themselves.
func classify(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}

	kind := domain.ErrStore

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	var myErr *mysql.MySQLError
	var liteErr sqlite3.Error

	switch {
	case errors.As(err, &pgErr):
		kind = sqlStateKind(pgErr.Code)
	case errors.As(err, &pqErr):
		kind = sqlStateKind(string(pqErr.Code))
	case errors.As(err, &myErr):
		kind = mysqlKind(myErr.Number)
	case errors.As(err, &liteErr):
		kind = sqliteKind(liteErr)
	}

	return fmt.Errorf("%w: %w", kind, err)
}

func sqlStateKind(code string) error {
	switch code {
	case "23505": // unique_violation
		return domain.ErrConflict
	case "23503": // foreign_key_violation
		return domain.ErrReferential
	case "23514", "23502": // check_violation, not_null_violation
		return domain.ErrValidation
	case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
		return domain.ErrConflict
	}
	return domain.ErrStore
}

func mysqlKind(number uint16) error {
	switch number {
	case 1062: // ER_DUP_ENTRY
		return domain.ErrConflict
	case 1451, 1452: // ER_ROW_IS_REFERENCED_2, ER_NO_REFERENCED_ROW_2
		return domain.ErrReferential
	case 3819, 1048: // ER_CHECK_CONSTRAINT_VIOLATED, ER_BAD_NULL_ERROR
		return domain.ErrValidation
	case 1213, 1205: // ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
		return domain.ErrConflict
	}
	return domain.ErrStore
}

func sqliteKind(err sqlite3.Error) error {
	switch err.Code {
	case sqlite3.ErrConstraint:
		switch err.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return domain.ErrConflict
		case sqlite3.ErrConstraintForeignKey:
			return domain.ErrReferential
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return domain.ErrValidation
		}
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return domain.ErrConflict
	}
	return domain.ErrStore
}
