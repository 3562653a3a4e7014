package introspect

import (
	"log/slog"

	"github.com/lucasefe/dbscript/schema"
)

// Option configures introspection behavior.
type Option func(*options)

type options struct {
	dialect        schema.Dialect
	queries        *Queries
	excludeSchemas []string
	logger         *slog.Logger
}

func defaultOptions() *options {
	return &options{
		dialect: schema.MSSQL,
		logger:  slog.Default(),
	}
}

// WithDialect selects the catalog queries of a database dialect.
// If not specified, defaults to SQL Server.
func WithDialect(dialect schema.Dialect) Option {
	return func(o *options) {
		o.dialect = dialect
	}
}

// WithQueries replaces the embedded catalog queries.
// Empty fields fall back to the dialect's embedded query.
func WithQueries(q Queries) Option {
	return func(o *options) {
		o.queries = &q
	}
}

// WithExcludeSchemas drops the named schemas, their objects and the
// references touching them from the result.
func WithExcludeSchemas(schemas ...string) Option {
	return func(o *options) {
		o.excludeSchemas = schemas
	}
}

// WithLogger sets the logger used for progress diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
