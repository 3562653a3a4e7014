package generator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lucasefe/dbscript/schema"

	_ "github.com/microsoft/go-mssqldb"
)

type mssqlProvider struct {
	q      Querier
	mapper TypeMapper
}

var mssqlObjectQueries = map[schema.Kind]string{
	schema.KindSchema: `SELECT s.name FROM sys.schemas s ORDER BY s.name`,
	schema.KindTable: `
		SELECT s.name, o.name
		FROM sys.tables o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		ORDER BY s.name, o.name`,
	schema.KindView: `
		SELECT s.name, o.name
		FROM sys.views o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		ORDER BY s.name, o.name`,
	schema.KindStoredProcedure: `
		SELECT s.name, o.name
		FROM sys.procedures o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		ORDER BY s.name, o.name`,
	schema.KindFunction: `
		SELECT s.name, o.name
		FROM sys.objects o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		WHERE o.type IN ('FN', 'IF', 'TF', 'FS', 'FT')
		ORDER BY s.name, o.name`,
}

// mssqlObjectTypes are the OBJECT_ID type arguments used to guard drops.
var mssqlObjectTypes = map[schema.Kind]string{
	schema.KindTable:           "U",
	schema.KindView:            "V",
	schema.KindStoredProcedure: "P",
}

var mssqlDropKeywords = map[schema.Kind]string{
	schema.KindTable:           "TABLE",
	schema.KindView:            "VIEW",
	schema.KindStoredProcedure: "PROCEDURE",
	schema.KindFunction:        "FUNCTION",
	schema.KindSchema:          "SCHEMA",
}

func (p *mssqlProvider) Objects(ctx context.Context, kind schema.Kind) ([]schema.Object, error) {
	query, ok := mssqlObjectQueries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %d", schema.ErrUnknownKind, int(kind))
	}
	return queryObjects(ctx, p.q, kind, query)
}

func (p *mssqlProvider) Script(ctx context.Context, obj schema.Object, opts Options) ([]string, error) {
	if !obj.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", schema.ErrUnknownKind, int(obj.Kind))
	}
	if opts.Drop {
		return p.scriptDrop(obj, opts), nil
	}

	var (
		lines []string
		err   error
	)
	switch obj.Kind {
	case schema.KindSchema:
		lines, err = p.scriptSchema(ctx, obj)
	case schema.KindTable:
		lines, err = p.scriptTable(ctx, obj, opts)
	case schema.KindView, schema.KindStoredProcedure, schema.KindFunction:
		lines, err = p.scriptModule(ctx, obj)
	default:
		err = fmt.Errorf("%w: %d", schema.ErrUnknownKind, int(obj.Kind))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to script %s %s: %w", obj.Kind.Label(), obj.QualifiedName(), err)
	}
	return lines, nil
}

func (p *mssqlProvider) Close() error { return nil }

func (p *mssqlProvider) scriptDrop(obj schema.Object, opts Options) []string {
	if obj.Kind == schema.KindSchema {
		stmt := fmt.Sprintf("DROP SCHEMA %s", mssqlQuote(obj.Name))
		if opts.IncludeIfExists {
			stmt = fmt.Sprintf("IF EXISTS (SELECT * FROM sys.schemas WHERE name = %s)\n%s",
				mssqlString(obj.Name), stmt)
		}
		return []string{stmt}
	}

	name := mssqlName(obj, opts.SchemaQualify)
	stmt := fmt.Sprintf("DROP %s %s", mssqlDropKeywords[obj.Kind], name)
	if opts.IncludeIfExists {
		guard := fmt.Sprintf("IF OBJECT_ID(%s) IS NOT NULL", mssqlString(mssqlName(obj, true)))
		if t, ok := mssqlObjectTypes[obj.Kind]; ok {
			guard = fmt.Sprintf("IF OBJECT_ID(%s, %s) IS NOT NULL", mssqlString(mssqlName(obj, true)), mssqlString(t))
		}
		stmt = guard + "\n" + stmt
	}
	return []string{stmt}
}

func (p *mssqlProvider) scriptSchema(ctx context.Context, obj schema.Object) ([]string, error) {
	var owner sql.NullString
	err := p.q.QueryRowContext(ctx,
		`SELECT USER_NAME(s.principal_id) FROM sys.schemas s WHERE s.name = @p1`, obj.Name).Scan(&owner)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("CREATE SCHEMA %s", mssqlQuote(obj.Name))
	if owner.Valid && owner.String != "" {
		stmt += " AUTHORIZATION " + mssqlQuote(owner.String)
	}
	return []string{stmt}, nil
}

func (p *mssqlProvider) scriptModule(ctx context.Context, obj schema.Object) ([]string, error) {
	var (
		definition         sql.NullString
		ansiNulls, quotedI bool
	)
	err := p.q.QueryRowContext(ctx, `
		SELECT m.definition, m.uses_ansi_nulls, m.uses_quoted_identifier
		FROM sys.sql_modules m
		WHERE m.object_id = OBJECT_ID(@p1)`, mssqlName(obj, true)).Scan(&definition, &ansiNulls, &quotedI)
	if err != nil {
		return nil, err
	}
	if !definition.Valid {
		return nil, fmt.Errorf("definition is not available (encrypted module?)")
	}

	return []string{
		"SET ANSI_NULLS " + onOff(ansiNulls),
		"SET QUOTED_IDENTIFIER " + onOff(quotedI),
		strings.TrimSpace(definition.String),
	}, nil
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// mssqlQuote brackets an identifier.
func mssqlQuote(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlString renders a unicode string literal.
func mssqlString(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func mssqlName(obj schema.Object, qualify bool) string {
	if !qualify || obj.Schema == "" {
		return mssqlQuote(obj.Name)
	}
	return mssqlQuote(obj.Schema) + "." + mssqlQuote(obj.Name)
}
