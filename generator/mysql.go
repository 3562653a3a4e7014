package generator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lucasefe/dbscript/schema"

	_ "github.com/go-sql-driver/mysql"
)

// mysqlProvider scripts the objects of the connection's current database.
// MySQL has no schemas below a database, so the database is the schema.
type mysqlProvider struct {
	q Querier
}

var mysqlObjectQueries = map[schema.Kind]string{
	schema.KindSchema: `SELECT DATABASE()`,
	schema.KindTable: `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	schema.KindView: `
		SELECT table_schema, table_name
		FROM information_schema.views
		WHERE table_schema = DATABASE()
		ORDER BY table_name`,
	schema.KindStoredProcedure: `
		SELECT routine_schema, routine_name
		FROM information_schema.routines
		WHERE routine_schema = DATABASE() AND routine_type = 'PROCEDURE'
		ORDER BY routine_name`,
	schema.KindFunction: `
		SELECT routine_schema, routine_name
		FROM information_schema.routines
		WHERE routine_schema = DATABASE() AND routine_type = 'FUNCTION'
		ORDER BY routine_name`,
}

var mysqlKeywords = map[schema.Kind]string{
	schema.KindSchema:          "DATABASE",
	schema.KindTable:           "TABLE",
	schema.KindView:            "VIEW",
	schema.KindStoredProcedure: "PROCEDURE",
	schema.KindFunction:        "FUNCTION",
}

// mysqlCreateColumns names the SHOW CREATE result column holding the statement.
var mysqlCreateColumns = map[schema.Kind]string{
	schema.KindSchema:          "Create Database",
	schema.KindTable:           "Create Table",
	schema.KindView:            "Create View",
	schema.KindStoredProcedure: "Create Procedure",
	schema.KindFunction:        "Create Function",
}

func (p *mysqlProvider) Objects(ctx context.Context, kind schema.Kind) ([]schema.Object, error) {
	query, ok := mysqlObjectQueries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %d", schema.ErrUnknownKind, int(kind))
	}
	return queryObjects(ctx, p.q, kind, query)
}

func (p *mysqlProvider) Script(ctx context.Context, obj schema.Object, opts Options) ([]string, error) {
	keyword, ok := mysqlKeywords[obj.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %d", schema.ErrUnknownKind, int(obj.Kind))
	}

	name := mysqlName(obj, opts.SchemaQualify)
	if obj.Kind == schema.KindSchema {
		name = mysqlQuote(obj.Name)
	}

	if opts.Drop {
		ifExists := ""
		if opts.IncludeIfExists {
			ifExists = "IF EXISTS "
		}
		return []string{fmt.Sprintf("DROP %s %s%s;", keyword, ifExists, name)}, nil
	}

	// SHOW CREATE always needs the qualified name to find the object.
	target := mysqlName(obj, true)
	if obj.Kind == schema.KindSchema {
		target = mysqlQuote(obj.Name)
	}
	stmt, err := p.showCreate(ctx, fmt.Sprintf("SHOW CREATE %s %s", keyword, target), mysqlCreateColumns[obj.Kind])
	if err != nil {
		return nil, fmt.Errorf("failed to script %s %s: %w", obj.Kind.Label(), obj.QualifiedName(), err)
	}
	if !strings.HasSuffix(stmt, ";") {
		stmt += ";"
	}
	if obj.Kind == schema.KindSchema {
		// SHOW CREATE output of the other kinds is unqualified.
		return []string{stmt, fmt.Sprintf("USE %s;", target)}, nil
	}
	return []string{stmt}, nil
}

func (p *mysqlProvider) Close() error { return nil }

// showCreate runs a SHOW CREATE statement and returns the named column of its single row.
func (p *mysqlProvider) showCreate(ctx context.Context, query, column string) (string, error) {
	rows, err := p.q.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}
	idx := -1
	for i, c := range columns {
		if strings.EqualFold(c, column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("column %q not found in result", column)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", sql.ErrNoRows
	}

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return "", err
	}
	if !values[idx].Valid {
		return "", fmt.Errorf("definition is not available")
	}

	return strings.TrimSpace(values[idx].String), rows.Err()
}

func mysqlQuote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func mysqlName(obj schema.Object, qualify bool) string {
	if !qualify || obj.Schema == "" {
		return mysqlQuote(obj.Name)
	}
	return mysqlQuote(obj.Schema) + "." + mysqlQuote(obj.Name)
}
