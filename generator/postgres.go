package generator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lucasefe/dbscript/schema"

	_ "github.com/lib/pq"
)

type postgresProvider struct {
	q Querier
}

var postgresObjectQueries = map[schema.Kind]string{
	schema.KindSchema: `SELECT nspname FROM pg_namespace ORDER BY nspname`,
	schema.KindTable: `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		ORDER BY table_schema, table_name`,
	schema.KindView: `
		SELECT table_schema, table_name
		FROM information_schema.views
		ORDER BY table_schema, table_name`,
	schema.KindStoredProcedure: `
		SELECT DISTINCT n.nspname, p.proname
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE p.prokind = 'p'
		ORDER BY n.nspname, p.proname`,
	schema.KindFunction: `
		SELECT DISTINCT n.nspname, p.proname
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE p.prokind = 'f'
		ORDER BY n.nspname, p.proname`,
}

func (p *postgresProvider) Objects(ctx context.Context, kind schema.Kind) ([]schema.Object, error) {
	query, ok := postgresObjectQueries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %d", schema.ErrUnknownKind, int(kind))
	}
	return queryObjects(ctx, p.q, kind, query)
}

func (p *postgresProvider) Script(ctx context.Context, obj schema.Object, opts Options) ([]string, error) {
	if !obj.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", schema.ErrUnknownKind, int(obj.Kind))
	}
	var (
		lines []string
		err   error
	)
	switch {
	case obj.Kind == schema.KindStoredProcedure || obj.Kind == schema.KindFunction:
		lines, err = p.scriptRoutines(ctx, obj, opts)
	case opts.Drop:
		lines = p.scriptDrop(obj, opts)
	case obj.Kind == schema.KindSchema:
		lines, err = p.scriptSchema(ctx, obj)
	case obj.Kind == schema.KindView:
		lines, err = p.scriptView(ctx, obj, opts)
	case obj.Kind == schema.KindTable:
		lines, err = p.scriptTable(ctx, obj, opts)
	default:
		err = fmt.Errorf("%w: %d", schema.ErrUnknownKind, int(obj.Kind))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to script %s %s: %w", obj.Kind.Label(), obj.QualifiedName(), err)
	}
	return lines, nil
}

func (p *postgresProvider) Close() error { return nil }

func (p *postgresProvider) scriptDrop(obj schema.Object, opts Options) []string {
	keyword := map[schema.Kind]string{
		schema.KindSchema: "SCHEMA",
		schema.KindTable:  "TABLE",
		schema.KindView:   "VIEW",
	}[obj.Kind]

	ifExists := ""
	if opts.IncludeIfExists {
		ifExists = "IF EXISTS "
	}
	return []string{fmt.Sprintf("DROP %s %s%s;", keyword, ifExists, postgresName(obj, opts.SchemaQualify))}
}

func (p *postgresProvider) scriptSchema(ctx context.Context, obj schema.Object) ([]string, error) {
	owners, err := queryStrings(ctx, p.q,
		`SELECT pg_get_userbyid(nspowner) FROM pg_namespace WHERE nspname = $1`, obj.Name)
	if err != nil {
		return nil, err
	}

	stmt := "CREATE SCHEMA " + postgresQuote(obj.Name)
	if len(owners) > 0 {
		stmt += " AUTHORIZATION " + postgresQuote(owners[0])
	}
	return []string{stmt + ";"}, nil
}

func (p *postgresProvider) scriptView(ctx context.Context, obj schema.Object, opts Options) ([]string, error) {
	defs, err := queryStrings(ctx, p.q, `
		SELECT pg_get_viewdef(c.oid, true)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind IN ('v', 'm')`, obj.Schema, obj.Name)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("view definition not found")
	}

	def := strings.TrimSpace(defs[0])
	if !strings.HasSuffix(def, ";") {
		def += ";"
	}
	return []string{fmt.Sprintf("CREATE VIEW %s AS\n%s", postgresName(obj, opts.SchemaQualify), def)}, nil
}

// scriptRoutines renders every overload sharing the object's name.
func (p *postgresProvider) scriptRoutines(ctx context.Context, obj schema.Object, opts Options) ([]string, error) {
	query := `
		SELECT pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = $1 AND p.proname = $2
		ORDER BY p.oid
	`
	keyword := "FUNCTION"
	if obj.Kind == schema.KindStoredProcedure {
		keyword = "PROCEDURE"
	}
	if opts.Drop {
		query = `
			SELECT pg_get_function_identity_arguments(p.oid)
			FROM pg_proc p
			JOIN pg_namespace n ON n.oid = p.pronamespace
			WHERE n.nspname = $1 AND p.proname = $2
			ORDER BY p.oid
		`
	}

	results, err := queryStrings(ctx, p.q, query, obj.Schema, obj.Name)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		if opts.Drop {
			ifExists := ""
			if opts.IncludeIfExists {
				ifExists = "IF EXISTS "
			}
			lines = append(lines, fmt.Sprintf("DROP %s %s%s(%s);", keyword, ifExists, postgresName(obj, opts.SchemaQualify), r))
			continue
		}
		lines = append(lines, strings.TrimSpace(r)+";")
	}
	return lines, nil
}

func (p *postgresProvider) scriptTable(ctx context.Context, obj schema.Object, opts Options) ([]string, error) {
	name := postgresName(obj, opts.SchemaQualify)

	columns, err := p.getColumns(ctx, obj.Schema, obj.Name, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", name))
	builder.WriteString(strings.Join(columns, ",\n"))

	var constraints [][2]string
	if opts.DependentConstraints {
		constraints, err = p.getConstraints(ctx, obj.Schema, obj.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get constraints: %w", err)
		}
	}

	// Primary keys, unique and check constraints live inside the table;
	// foreign keys follow it so they can reference tables created later.
	var foreignKeys []string
	for _, c := range constraints {
		if strings.HasPrefix(c[1], "FOREIGN KEY") {
			foreignKeys = append(foreignKeys, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s;", name, postgresQuote(c[0]), c[1]))
			continue
		}
		builder.WriteString(fmt.Sprintf(",\n    CONSTRAINT %s %s", postgresQuote(c[0]), c[1]))
	}
	builder.WriteString("\n);")

	lines := []string{builder.String()}

	if opts.Indexes {
		indexes, err := queryStrings(ctx, p.q, `
			SELECT pg_get_indexdef(i.indexrelid)
			FROM pg_index i
			JOIN pg_class c ON c.oid = i.indrelid
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE n.nspname = $1 AND c.relname = $2
				AND NOT EXISTS (SELECT 1 FROM pg_constraint k WHERE k.conindid = i.indexrelid)
			ORDER BY i.indexrelid`, obj.Schema, obj.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get indexes: %w", err)
		}
		for _, index := range indexes {
			lines = append(lines, index+";")
		}
	}

	return append(lines, foreignKeys...), nil
}

func (p *postgresProvider) getColumns(ctx context.Context, schemaName, tableName string, opts Options) ([]string, error) {
	query := `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid),
			co.collname
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		LEFT JOIN pg_collation co ON co.oid = a.attcollation AND co.collname <> 'default'
		WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum
	`

	rows, err := p.q.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name, dataType string
		var notNull bool
		var columnDefault, collation sql.NullString

		if err := rows.Scan(&name, &dataType, &notNull, &columnDefault, &collation); err != nil {
			return nil, err
		}

		col := fmt.Sprintf("    %s %s", postgresQuote(name), dataType)
		if collation.Valid && !opts.NoCollation {
			col += " COLLATE " + postgresQuote(collation.String)
		}
		if columnDefault.Valid {
			col += " DEFAULT " + columnDefault.String
		}
		if notNull {
			col += " NOT NULL"
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// getConstraints returns (name, definition) pairs, primary key first.
func (p *postgresProvider) getConstraints(ctx context.Context, schemaName, tableName string) ([][2]string, error) {
	query := `
		SELECT k.conname, pg_get_constraintdef(k.oid, true)
		FROM pg_constraint k
		JOIN pg_class c ON c.oid = k.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2 AND k.contype IN ('p', 'u', 'c', 'f')
		ORDER BY CASE k.contype WHEN 'p' THEN 0 WHEN 'u' THEN 1 WHEN 'c' THEN 2 ELSE 3 END, k.conname
	`

	rows, err := p.q.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints [][2]string
	for rows.Next() {
		var c [2]string
		if err := rows.Scan(&c[0], &c[1]); err != nil {
			return nil, err
		}
		constraints = append(constraints, c)
	}

	return constraints, rows.Err()
}

func postgresQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func postgresName(obj schema.Object, qualify bool) string {
	if !qualify || obj.Schema == "" {
		return postgresQuote(obj.Name)
	}
	return postgresQuote(obj.Schema) + "." + postgresQuote(obj.Name)
}
