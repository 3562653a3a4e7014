// Package introspect reads the catalog metadata the dependency graph is built
// from: the database name, its schemas, every other scriptable object and the
// references between objects.
//
// Basic usage:
//
//	meta, err := introspect.Metadata(ctx, db,
//	    introspect.WithDialect(schema.MSSQL),
//	    introspect.WithExcludeSchemas("staging"),
//	)
//
// Object and reference rows carry kind names ("Table", "View",
// "StoredProcedure", "UserDefinedFunction"), so custom queries supplied
// with WithQueries must produce the same columns as the embedded ones.
package introspect

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"

	"github.com/lucasefe/dbscript/schema"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
)

//go:embed queries
var queryFiles embed.FS

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx used for introspection.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Queries holds the four catalog queries of a dialect.
type Queries struct {
	// Database returns one row with the current database name.
	Database string
	// Schemas returns one name column per schema.
	Schemas string
	// Objects returns (kind, schema, name) rows.
	Objects string
	// References returns (kind, schema, name) of the referencing object
	// followed by (kind, schema, name) of the referenced object.
	References string
}

// DefaultQueries returns the embedded catalog queries of dialect.
func DefaultQueries(dialect schema.Dialect) (Queries, error) {
	if dialect == "" {
		dialect = schema.MSSQL
	}
	switch dialect {
	case schema.MSSQL, schema.Postgres, schema.MySQL:
	default:
		return Queries{}, fmt.Errorf("%w: %q", schema.ErrUnknownDialect, dialect)
	}

	read := func(name string) (string, error) {
		b, err := queryFiles.ReadFile(path.Join("queries", string(dialect), name+".sql"))
		if err != nil {
			return "", fmt.Errorf("failed to load %s query: %w", name, err)
		}
		return string(b), nil
	}

	var q Queries
	var err error
	if q.Database, err = read("database"); err != nil {
		return Queries{}, err
	}
	if q.Schemas, err = read("schemas"); err != nil {
		return Queries{}, err
	}
	if q.Objects, err = read("objects"); err != nil {
		return Queries{}, err
	}
	if q.References, err = read("references"); err != nil {
		return Queries{}, err
	}
	return q, nil
}

// merge fills the empty fields of q from defaults.
func (q Queries) merge(defaults Queries) Queries {
	if q.Database == "" {
		q.Database = defaults.Database
	}
	if q.Schemas == "" {
		q.Schemas = defaults.Schemas
	}
	if q.Objects == "" {
		q.Objects = defaults.Objects
	}
	if q.References == "" {
		q.References = defaults.References
	}
	return q
}

// Metadata introspects the database behind q.
// Use options to select the dialect and the schemas to leave out.
func Metadata(ctx context.Context, q Querier, opts ...Option) (*schema.Metadata, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	queries, err := DefaultQueries(o.dialect)
	if err != nil {
		return nil, err
	}
	if o.queries != nil {
		queries = o.queries.merge(queries)
	}

	meta := &schema.Metadata{}

	names, err := queryNames(ctx, q, queries.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to get database name: %w", err)
	}
	if len(names) > 0 {
		meta.Database = names[0]
	}

	if meta.Schemas, err = queryNames(ctx, q, queries.Schemas); err != nil {
		return nil, fmt.Errorf("failed to get schemas: %w", err)
	}

	if meta.Objects, err = getObjects(ctx, q, queries.Objects); err != nil {
		return nil, fmt.Errorf("failed to get objects: %w", err)
	}

	if meta.References, err = getReferences(ctx, q, queries.References); err != nil {
		return nil, fmt.Errorf("failed to get references: %w", err)
	}

	o.logger.Debug("metadata loaded",
		"database", meta.Database,
		"schemas", len(meta.Schemas),
		"objects", len(meta.Objects),
		"references", len(meta.References))

	return meta.ExcludeSchemas(o.excludeSchemas), nil
}

// FromConnectionString connects to a database and introspects it.
// This is a convenience function that handles connection management.
func FromConnectionString(ctx context.Context, connStr string, opts ...Option) (*schema.Metadata, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	db, err := sql.Open(o.dialect.DriverName(), connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return Metadata(ctx, db, opts...)
}

func queryNames(ctx context.Context, q Querier, query string) ([]string, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if name.Valid {
			names = append(names, name.String)
		}
	}

	return names, rows.Err()
}

func getObjects(ctx context.Context, q Querier, query string) ([]schema.Object, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []schema.Object
	for rows.Next() {
		var kind, schemaName, name string
		if err := rows.Scan(&kind, &schemaName, &name); err != nil {
			return nil, err
		}
		obj, err := newObject(kind, schemaName, name)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}

	return objects, rows.Err()
}

func getReferences(ctx context.Context, q Querier, query string) ([]schema.Reference, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var references []schema.Reference
	for rows.Next() {
		var fromKind, fromSchema, fromName, toKind, toSchema, toName string
		if err := rows.Scan(&fromKind, &fromSchema, &fromName, &toKind, &toSchema, &toName); err != nil {
			return nil, err
		}
		from, err := newObject(fromKind, fromSchema, fromName)
		if err != nil {
			return nil, err
		}
		to, err := newObject(toKind, toSchema, toName)
		if err != nil {
			return nil, err
		}
		references = append(references, schema.Reference{From: from, To: to})
	}

	return references, rows.Err()
}

func newObject(kind, schemaName, name string) (schema.Object, error) {
	k, err := schema.ParseKind(kind)
	if err != nil {
		return schema.Object{}, fmt.Errorf("object %s.%s: %w", schemaName, name, err)
	}
	if k == schema.KindSchema {
		schemaName = ""
	}
	return schema.Object{Kind: k, Schema: schemaName, Name: name}, nil
}
