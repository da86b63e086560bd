package sqlite

import (
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// classifyModernc maps modernc.org/sqlite errors onto the constraint
// taxonomy. Errors that are not constraint failures pass through unchanged.
func classifyModernc(err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		return classifyCode(se.Code(), err)
	}
	return classifyMessage(err)
}

// classifyCode classifies an extended SQLite result code. mattn/go-sqlite3
// reports the same numeric codes, so both drivers share it.
func classifyCode(code int, err error) error {
	var sentinel error
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		sentinel = types.ErrUniqueViolation
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		sentinel = types.ErrNotNullViolation
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		sentinel = types.ErrForeignKeyViolation
	default:
		if code&0xff != sqlite3.SQLITE_CONSTRAINT {
			return err
		}
		sentinel = types.ErrConstraintViolation
	}
	return constraintError(sentinel, err)
}

// classifyMessage is the fallback for errors that lost their driver type.
func classifyMessage(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "PRIMARY KEY constraint failed"):
		return constraintError(types.ErrUniqueViolation, err)
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return constraintError(types.ErrNotNullViolation, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return constraintError(types.ErrForeignKeyViolation, err)
	case strings.Contains(msg, "constraint failed"):
		return constraintError(types.ErrConstraintViolation, err)
	}
	return err
}

func constraintError(sentinel, err error) error {
	return types.NewConstraintError("execute", "", "", fmt.Errorf("%w: %w", sentinel, err))
}
