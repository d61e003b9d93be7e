package sqlite

import (
	"errors"
	"strings"

	"github.com/sakif/taskflow/internal/apperror"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// classify translates a driver error into a domain error.
//
// TRANSLATING DATABASE ERRORS:
// Services shouldn't know that "UNIQUE constraint failed: users.email (2067)"
// means "that email is taken". We look at SQLite's extended result code here,
// at the edge, and hand the service an apperror it can reason about:
//   - UNIQUE / PRIMARY KEY violation → apperror.Duplicate("user", "email")
//   - FOREIGN KEY violation          → apperror.NotFound (the referenced row is gone)
//   - anything else                  → apperror.Store (generic failure, cause kept for logs)
func classify(op string, err error) error {
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			table, column := constraintTarget(se.Error())
			return apperror.Duplicate(resourceName(table), column)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperror.NotFound("referenced record", "the given id")
		}
	}
	return apperror.Store(op, err)
}

// constraintTarget extracts ("users", "email") from a message such as
// "constraint failed: UNIQUE constraint failed: users.email (2067)".
// Composite constraints report the first column.
func constraintTarget(msg string) (table, column string) {
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return "", "value"
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexAny(rest, " ,"); j >= 0 {
		rest = rest[:j]
	}
	table, column, ok := strings.Cut(rest, ".")
	if !ok {
		return "", rest
	}
	return table, column
}

func resourceName(table string) string {
	if table == "" {
		return "record"
	}
	return strings.TrimSuffix(table, "s")
}
