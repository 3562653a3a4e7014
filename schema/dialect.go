package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDialect is returned by ParseDialect for unsupported databases.
var ErrUnknownDialect = errors.New("unknown dialect")

// Dialect selects the database flavour being scripted.
type Dialect string

const (
	MSSQL    Dialect = "mssql"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// ParseDialect parses a dialect name. An empty name selects MSSQL.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mssql", "sqlserver":
		return MSSQL, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDialect, s)
}

// DriverName returns the database/sql driver name registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	default:
		return "sqlserver"
	}
}

// BatchSeparator returns the line that ends one execution batch.
// Only SQL Server scripts have a batch separator; the other dialects
// separate objects with an empty line and terminate statements themselves.
func (d Dialect) BatchSeparator() string {
	if d == MSSQL || d == "" {
		return "GO"
	}
	return ""
}
