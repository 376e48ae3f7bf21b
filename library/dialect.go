package library

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the few places where SQLite and PostgreSQL disagree.
// Queries are written with ? placeholders and rebound per dialect.
type Dialect struct {
	Name     string
	Driver   string
	numbered bool
	serialPK string
	pragmas  []string
}

var (
	SQLite = Dialect{
		Name:     "sqlite",
		Driver:   "sqlite3",
		serialPK: "INTEGER PRIMARY KEY AUTOINCREMENT",
		// WAL improves write concurrency.
		pragmas: []string{"PRAGMA journal_mode=WAL;"},
	}
	Postgres = Dialect{
		Name:     "postgres",
		Driver:   "pgx",
		numbered: true,
		serialPK: "BIGSERIAL PRIMARY KEY",
	}
)

// DialectFor returns the dialect of a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "", SQLite.Driver, "sqlite":
		return SQLite, nil
	case Postgres.Driver, "postgres", "postgresql":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported driver %q: %w", driver, ErrValidation)
}

// Rebind rewrites ? placeholders into $1, $2, ... for numbered dialects,
// leaving quoted literals untouched. Placeholder order is preserved.
func (d Dialect) Rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
