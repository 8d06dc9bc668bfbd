package store

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateEmail    = errors.New("duplicate email")
)

// classifyDuplicate maps a unique violation from any supported driver onto
// ErrDuplicateUsername or ErrDuplicateEmail by the violated constraint or
// column name. Driver messages also carry the colliding value, so only the
// name part is inspected. Other errors pass through.
func classifyDuplicate(err error) error {
	if err == nil {
		return nil
	}
	var (
		pgErr  *pgconn.PgError
		myErr  *mysql.MySQLError
		sqlErr *sqlite.Error
		name   string
	)
	switch {
	case errors.As(err, &pgErr):
		if pgErr.Code != "23505" {
			return err
		}
		name = pgErr.ConstraintName
	case errors.As(err, &myErr):
		if myErr.Number != 1062 {
			return err
		}
		name = mysqlKeyName(myErr.Message)
	case errors.As(err, &sqlErr):
		code := sqlErr.Code()
		if code != sqlite3.SQLITE_CONSTRAINT_UNIQUE && code != sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return err
		}
		name = sqliteColumn(sqlErr.Error())
	default:
		return err
	}
	return duplicateFor(name)
}

func duplicateFor(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	switch {
	case name == "email" || strings.HasSuffix(name, "_email"):
		return ErrDuplicateEmail
	case name == "username" || strings.HasSuffix(name, "_username"):
		return ErrDuplicateUsername
	}
	return ErrConflict
}

// mysqlKeyName extracts the key from "Duplicate entry '...' for key '<key>'".
func mysqlKeyName(msg string) string {
	const marker = "for key '"
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.LastIndex(rest, "'"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// sqliteColumn extracts "table.column" from "UNIQUE constraint failed:
// table.column (2067)". Composite constraints report several columns; the
// first one names the field.
func sqliteColumn(msg string) string {
	const marker = "failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexAny(rest, " ,"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
