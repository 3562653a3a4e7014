// Package generator renders the DDL text of database objects. It is the only
// place statements are produced; callers order and write them.
//
// Basic usage:
//
//	p, err := generator.Open(ctx, db, schema.MSSQL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	lines, err := p.Script(ctx, obj, generator.CreateOptions())
//
// Every provider returned by Open holds its own connection, so one provider
// per concurrent task never shares a session with another.
package generator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lucasefe/dbscript/schema"
)

// Provider lists the live objects of a database and renders their statements.
type Provider interface {
	// Objects returns every object of the given kind, system objects included.
	Objects(ctx context.Context, kind schema.Kind) ([]schema.Object, error)
	// Script renders the drop or create statements of obj, one entry per statement.
	Script(ctx context.Context, obj schema.Object, opts Options) ([]string, error)
	// Close releases the provider session.
	Close() error
}

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx the providers need.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options selects drop or create semantics and what a create includes.
type Options struct {
	// Drop renders drop statements instead of create statements.
	Drop bool
	// IncludeIfExists guards drops so they succeed when the object is missing.
	IncludeIfExists bool
	// SchemaQualify prefixes object names with their schema.
	SchemaQualify bool
	// DependentConstraints includes primary keys, defaults, checks and foreign keys.
	DependentConstraints bool
	// Indexes includes the indexes of a table.
	Indexes bool
	// NoCollation omits column collations.
	NoCollation bool
	// SchemaQualifyForeignKeys prefixes referenced tables in foreign keys with their schema.
	SchemaQualifyForeignKeys bool
}

// DropOptions returns the options used for drop passes.
func DropOptions() Options {
	return Options{
		Drop:            true,
		IncludeIfExists: true,
		SchemaQualify:   true,
	}
}

// CreateOptions returns the options used for create passes.
func CreateOptions() Options {
	return Options{
		SchemaQualify: true,
	}
}

// Option configures a provider.
type Option func(*options)

type options struct {
	typeMapper TypeMapper
}

func defaultOptions() *options {
	return &options{typeMapper: NewSQLServerTypeMapper(nil)}
}

// WithTypeMapper sets a custom mapper for rendering SQL Server column types.
func WithTypeMapper(mapper TypeMapper) Option {
	return func(o *options) {
		o.typeMapper = mapper
	}
}

// WithTypeMappings overrides the rendering of individual SQL Server types.
// Keys are type names (case-insensitive), values the rendered type.
func WithTypeMappings(mappings map[string]string) Option {
	return func(o *options) {
		o.typeMapper = NewSQLServerTypeMapper(mappings)
	}
}

// New returns the provider for dialect on top of q. The provider does not own q.
func New(q Querier, dialect schema.Dialect, opts ...Option) (Provider, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	switch dialect {
	case schema.MSSQL, "":
		return &mssqlProvider{q: q, mapper: o.typeMapper}, nil
	case schema.Postgres:
		return &postgresProvider{q: q}, nil
	case schema.MySQL:
		return &mysqlProvider{q: q}, nil
	}
	return nil, fmt.Errorf("%w: %q", schema.ErrUnknownDialect, dialect)
}

// Open takes a dedicated connection from db and returns a provider using it.
// Closing the provider returns the connection to the pool.
func Open(ctx context.Context, db *sql.DB, dialect schema.Dialect, opts ...Option) (Provider, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	p, err := New(conn, dialect, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &connProvider{Provider: p, conn: conn}, nil
}

type connProvider struct {
	Provider
	conn *sql.Conn
}

func (p *connProvider) Close() error {
	return p.conn.Close()
}

// queryObjects scans (schema, name) rows into objects of kind.
func queryObjects(ctx context.Context, q Querier, kind schema.Kind, query string, args ...any) ([]schema.Object, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s objects: %w", kind.Label(), err)
	}
	defer rows.Close()

	var objects []schema.Object
	for rows.Next() {
		obj := schema.Object{Kind: kind}
		if kind == schema.KindSchema {
			err = rows.Scan(&obj.Name)
		} else {
			err = rows.Scan(&obj.Schema, &obj.Name)
		}
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}

	return objects, rows.Err()
}

// queryStrings returns the first column of every row.
func queryStrings(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s.Valid {
			out = append(out, s.String)
		}
	}

	return out, rows.Err()
}

func joinQuoted(names []string, quote func(string) string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}
