package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// CaseInsensitiveLikeExpr returns a case-insensitive LIKE condition for
// column that honours backslash escapes. Pair it with ContainsPattern.
func CaseInsensitiveLikeExpr(conn *gorm.DB, column string) string {
	if IsSQLite(conn) {
		return fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, column)
	}
	return fmt.Sprintf(`%s ILIKE ? ESCAPE '\'`, column)
}

// ContainsPattern builds a substring pattern for CaseInsensitiveLikeExpr.
// Wildcards typed by the caller match literally.
func ContainsPattern(conn *gorm.DB, term string) string {
	pattern := "%" + likeEscaper.Replace(term) + "%"
	if IsSQLite(conn) {
		return strings.ToLower(pattern)
	}
	return pattern
}

// PrefixLikeExpr returns a case-sensitive prefix condition for column.
// Codes are stored upper case, so callers normalise the term first.
func PrefixLikeExpr(column string) string {
	return fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, column)
}

// PrefixPattern builds the argument for PrefixLikeExpr.
func PrefixPattern(term string) string {
	return likeEscaper.Replace(term) + "%"
}

// ForUpdate adds a row lock on dialects that support it. SQLite locks the
// whole database for the write transaction, so it gets nothing.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if IsSQLite(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
