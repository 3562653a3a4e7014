package generator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lucasefe/dbscript/schema"
)

type mssqlColumn struct {
	name      string
	typeName  string
	maxLength sql.NullInt64
	precision sql.NullInt64
	scale     sql.NullInt64
	nullable  bool
	identity  bool
	seed      sql.NullInt64
	increment sql.NullInt64
	collation sql.NullString
	defName   sql.NullString
	defValue  sql.NullString
	computed  sql.NullString
}

type mssqlKeyColumn struct {
	name       string
	descending bool
	included   bool
}

type mssqlIndex struct {
	name     string
	unique   bool
	typeDesc string
	columns  []mssqlKeyColumn
}

type mssqlForeignKey struct {
	name        string
	toSchema    string
	toTable     string
	fromColumns []string
	toColumns   []string
	onDelete    string
	onUpdate    string
}

func (p *mssqlProvider) scriptTable(ctx context.Context, obj schema.Object, opts Options) ([]string, error) {
	id := mssqlName(obj, true)
	name := mssqlName(obj, opts.SchemaQualify)

	columns, err := p.getColumns(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("CREATE TABLE %s(\n", name))
	for i, col := range columns {
		if i > 0 {
			builder.WriteString(",\n")
		}
		builder.WriteString("\t" + p.columnDefinition(col, opts))
	}

	var primaryKey *mssqlIndex
	if opts.DependentConstraints {
		primaryKey, err = p.getPrimaryKey(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get primary key: %w", err)
		}
	}
	if primaryKey != nil {
		builder.WriteString(fmt.Sprintf(",\n CONSTRAINT %s PRIMARY KEY %s \n(\n", mssqlQuote(primaryKey.name), primaryKey.typeDesc))
		builder.WriteString(keyColumnList(primaryKey.columns))
		builder.WriteString("\n)")
	}
	builder.WriteString("\n)")

	lines := []string{"SET ANSI_NULLS ON", "SET QUOTED_IDENTIFIER ON", builder.String()}

	if opts.Indexes {
		indexes, err := p.getIndexes(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get indexes: %w", err)
		}
		for _, index := range indexes {
			lines = append(lines, createIndex(name, index))
		}
	}

	if !opts.DependentConstraints {
		return lines, nil
	}

	for _, col := range columns {
		if col.defValue.Valid {
			lines = append(lines, fmt.Sprintf("ALTER TABLE %s ADD  CONSTRAINT %s  DEFAULT %s FOR %s",
				name, mssqlQuote(col.defName.String), col.defValue.String, mssqlQuote(col.name)))
		}
	}

	foreignKeys, err := p.getForeignKeys(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	for _, fk := range foreignKeys {
		lines = append(lines, foreignKeyDefinition(name, fk, opts))
		lines = append(lines, fmt.Sprintf("ALTER TABLE %s CHECK CONSTRAINT %s", name, mssqlQuote(fk.name)))
	}

	checks, err := p.getCheckConstraints(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get check constraints: %w", err)
	}
	for _, check := range checks {
		lines = append(lines, fmt.Sprintf("ALTER TABLE %s  WITH CHECK ADD  CONSTRAINT %s CHECK  %s",
			name, mssqlQuote(check[0]), check[1]))
	}

	return lines, nil
}

func (p *mssqlProvider) columnDefinition(col mssqlColumn, opts Options) string {
	if col.computed.Valid {
		return fmt.Sprintf("%s  AS %s", mssqlQuote(col.name), col.computed.String)
	}

	def := mssqlQuote(col.name) + " " + p.mapper.MapType(col.typeName, col.maxLength, col.precision, col.scale)
	if col.identity {
		def += fmt.Sprintf(" IDENTITY(%d,%d)", col.seed.Int64, col.increment.Int64)
	}
	if col.collation.Valid && !opts.NoCollation {
		def += " COLLATE " + col.collation.String
	}
	if col.nullable {
		def += " NULL"
	} else {
		def += " NOT NULL"
	}
	return def
}

func keyColumnList(columns []mssqlKeyColumn) string {
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		if c.included {
			continue
		}
		order := "ASC"
		if c.descending {
			order = "DESC"
		}
		parts = append(parts, fmt.Sprintf("\t%s %s", mssqlQuote(c.name), order))
	}
	return strings.Join(parts, ",\n")
}

func createIndex(table string, index mssqlIndex) string {
	var builder strings.Builder
	builder.WriteString("CREATE ")
	if index.unique {
		builder.WriteString("UNIQUE ")
	}
	builder.WriteString(fmt.Sprintf("%s INDEX %s ON %s\n(\n", index.typeDesc, mssqlQuote(index.name), table))
	builder.WriteString(keyColumnList(index.columns))
	builder.WriteString("\n)")

	var included []string
	for _, c := range index.columns {
		if c.included {
			included = append(included, c.name)
		}
	}
	if len(included) > 0 {
		builder.WriteString(" INCLUDE (" + joinQuoted(included, mssqlQuote) + ")")
	}
	return builder.String()
}

func foreignKeyDefinition(table string, fk mssqlForeignKey, opts Options) string {
	referenced := mssqlQuote(fk.toTable)
	if opts.SchemaQualifyForeignKeys {
		referenced = mssqlQuote(fk.toSchema) + "." + referenced
	}

	stmt := fmt.Sprintf("ALTER TABLE %s  WITH CHECK ADD  CONSTRAINT %s FOREIGN KEY(%s)\nREFERENCES %s (%s)",
		table, mssqlQuote(fk.name),
		joinQuoted(fk.fromColumns, mssqlQuote),
		referenced,
		joinQuoted(fk.toColumns, mssqlQuote))

	if action := referentialAction(fk.onUpdate); action != "" {
		stmt += "\nON UPDATE " + action
	}
	if action := referentialAction(fk.onDelete); action != "" {
		stmt += "\nON DELETE " + action
	}
	return stmt
}

// referentialAction converts a catalog action description such as SET_NULL
// to its DDL form. NO_ACTION renders as nothing.
func referentialAction(desc string) string {
	if desc == "" || desc == "NO_ACTION" {
		return ""
	}
	return strings.ReplaceAll(desc, "_", " ")
}

func (p *mssqlProvider) getColumns(ctx context.Context, id string) ([]mssqlColumn, error) {
	query := `
		SELECT
			c.name,
			t.name,
			CAST(c.max_length AS int),
			CAST(c.precision AS int),
			CAST(c.scale AS int),
			c.is_nullable,
			c.is_identity,
			CAST(ic.seed_value AS bigint),
			CAST(ic.increment_value AS bigint),
			c.collation_name,
			dc.name,
			dc.definition,
			cc.definition
		FROM sys.columns c
		JOIN sys.types t ON t.user_type_id = c.user_type_id
		LEFT JOIN sys.identity_columns ic ON ic.object_id = c.object_id AND ic.column_id = c.column_id
		LEFT JOIN sys.default_constraints dc ON dc.parent_object_id = c.object_id AND dc.parent_column_id = c.column_id
		LEFT JOIN sys.computed_columns cc ON cc.object_id = c.object_id AND cc.column_id = c.column_id
		WHERE c.object_id = OBJECT_ID(@p1)
		ORDER BY c.column_id
	`

	rows, err := p.q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []mssqlColumn
	for rows.Next() {
		var col mssqlColumn
		err := rows.Scan(
			&col.name,
			&col.typeName,
			&col.maxLength,
			&col.precision,
			&col.scale,
			&col.nullable,
			&col.identity,
			&col.seed,
			&col.increment,
			&col.collation,
			&col.defName,
			&col.defValue,
			&col.computed,
		)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (p *mssqlProvider) getPrimaryKey(ctx context.Context, id string) (*mssqlIndex, error) {
	query := `
		SELECT k.name, i.type_desc, c.name, ic.is_descending_key
		FROM sys.key_constraints k
		JOIN sys.indexes i ON i.object_id = k.parent_object_id AND i.index_id = k.unique_index_id
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE k.parent_object_id = OBJECT_ID(@p1) AND k.type = 'PK'
		ORDER BY ic.key_ordinal
	`

	rows, err := p.q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk *mssqlIndex
	for rows.Next() {
		var name, typeDesc string
		var col mssqlKeyColumn
		if err := rows.Scan(&name, &typeDesc, &col.name, &col.descending); err != nil {
			return nil, err
		}
		if pk == nil {
			pk = &mssqlIndex{name: name, typeDesc: typeDesc, unique: true}
		}
		pk.columns = append(pk.columns, col)
	}

	return pk, rows.Err()
}

func (p *mssqlProvider) getIndexes(ctx context.Context, id string) ([]mssqlIndex, error) {
	query := `
		SELECT i.name, i.is_unique, i.type_desc, c.name, ic.is_descending_key, ic.is_included_column
		FROM sys.indexes i
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE i.object_id = OBJECT_ID(@p1)
			AND i.is_primary_key = 0
			AND i.type > 0
		ORDER BY i.name, ic.is_included_column, ic.key_ordinal, ic.index_column_id
	`

	rows, err := p.q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []mssqlIndex
	for rows.Next() {
		var index mssqlIndex
		var col mssqlKeyColumn
		err := rows.Scan(&index.name, &index.unique, &index.typeDesc, &col.name, &col.descending, &col.included)
		if err != nil {
			return nil, err
		}
		if n := len(indexes); n > 0 && indexes[n-1].name == index.name {
			indexes[n-1].columns = append(indexes[n-1].columns, col)
			continue
		}
		index.columns = []mssqlKeyColumn{col}
		indexes = append(indexes, index)
	}

	return indexes, rows.Err()
}

func (p *mssqlProvider) getForeignKeys(ctx context.Context, id string) ([]mssqlForeignKey, error) {
	query := `
		SELECT
			fk.name,
			rs.name,
			rt.name,
			pc.name,
			rc.name,
			fk.delete_referential_action_desc,
			fk.update_referential_action_desc
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		JOIN sys.objects rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
		WHERE fk.parent_object_id = OBJECT_ID(@p1)
		ORDER BY fk.name, fkc.constraint_column_id
	`

	rows, err := p.q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var foreignKeys []mssqlForeignKey
	for rows.Next() {
		var fk mssqlForeignKey
		var fromColumn, toColumn string
		err := rows.Scan(&fk.name, &fk.toSchema, &fk.toTable, &fromColumn, &toColumn, &fk.onDelete, &fk.onUpdate)
		if err != nil {
			return nil, err
		}
		if n := len(foreignKeys); n > 0 && foreignKeys[n-1].name == fk.name {
			foreignKeys[n-1].fromColumns = append(foreignKeys[n-1].fromColumns, fromColumn)
			foreignKeys[n-1].toColumns = append(foreignKeys[n-1].toColumns, toColumn)
			continue
		}
		fk.fromColumns = []string{fromColumn}
		fk.toColumns = []string{toColumn}
		foreignKeys = append(foreignKeys, fk)
	}

	return foreignKeys, rows.Err()
}

// getCheckConstraints returns (name, definition) pairs.
func (p *mssqlProvider) getCheckConstraints(ctx context.Context, id string) ([][2]string, error) {
	query := `
		SELECT cc.name, cc.definition
		FROM sys.check_constraints cc
		WHERE cc.parent_object_id = OBJECT_ID(@p1)
		ORDER BY cc.name
	`

	rows, err := p.q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks [][2]string
	for rows.Next() {
		var check [2]string
		if err := rows.Scan(&check[0], &check[1]); err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}

	return checks, rows.Err()
}
