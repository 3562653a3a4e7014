package introspect

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasefe/dbscript/schema"
)

var (
	objectColumns    = []string{"database_object_type", "schema_name", "name"}
	referenceColumns = []string{
		"referencing_database_object_type", "referencing_schema_name", "referencing_entity_name",
		"referenced_database_object_type", "referenced_schema_name", "referenced_entity_name",
	}
)

func expectQuery(mock sqlmock.Sqlmock, query string) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta(strings.TrimSpace(query)))
}

func TestDefaultQueries(t *testing.T) {
	for _, dialect := range []schema.Dialect{schema.MSSQL, schema.Postgres, schema.MySQL, ""} {
		t.Run(string(dialect), func(t *testing.T) {
			q, err := DefaultQueries(dialect)
			require.NoError(t, err)
			assert.NotEmpty(t, q.Database)
			assert.NotEmpty(t, q.Schemas)
			assert.NotEmpty(t, q.Objects)
			assert.NotEmpty(t, q.References)
		})
	}

	_, err := DefaultQueries(schema.Dialect("oracle"))
	require.ErrorIs(t, err, schema.ErrUnknownDialect)
}

func TestMetadata(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q, err := DefaultQueries(schema.MSSQL)
	require.NoError(t, err)

	expectQuery(mock, q.Database).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Shop"))
	expectQuery(mock, q.Schemas).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("dbo").AddRow("sales"))
	expectQuery(mock, q.Objects).
		WillReturnRows(sqlmock.NewRows(objectColumns).
			AddRow("Table", "dbo", "T1").
			AddRow("View", "dbo", "V1").
			AddRow("StoredProcedure", "sales", "P1").
			AddRow("UserDefinedFunction", "sales", "F1"))
	expectQuery(mock, q.References).
		WillReturnRows(sqlmock.NewRows(referenceColumns).
			AddRow("View", "dbo", "V1", "Table", "dbo", "T1"))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	meta, err := Metadata(context.Background(), db, WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "Shop", meta.Database)
	assert.Equal(t, []string{"dbo", "sales"}, meta.Schemas)
	assert.Equal(t, []schema.Object{
		{Kind: schema.KindTable, Schema: "dbo", Name: "T1"},
		{Kind: schema.KindView, Schema: "dbo", Name: "V1"},
		{Kind: schema.KindStoredProcedure, Schema: "sales", Name: "P1"},
		{Kind: schema.KindFunction, Schema: "sales", Name: "F1"},
	}, meta.Objects)
	assert.Equal(t, []schema.Reference{{
		From: schema.Object{Kind: schema.KindView, Schema: "dbo", Name: "V1"},
		To:   schema.Object{Kind: schema.KindTable, Schema: "dbo", Name: "T1"},
	}}, meta.References)
	assert.Contains(t, buf.String(), "metadata loaded")
	assert.Contains(t, buf.String(), "objects=4")
}

func TestMetadataExcludeSchemas(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q, err := DefaultQueries(schema.Postgres)
	require.NoError(t, err)

	expectQuery(mock, q.Database).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("shop"))
	expectQuery(mock, q.Schemas).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("public").AddRow("staging"))
	expectQuery(mock, q.Objects).
		WillReturnRows(sqlmock.NewRows(objectColumns).
			AddRow("Table", "public", "orders").
			AddRow("Table", "staging", "orders_raw"))
	expectQuery(mock, q.References).
		WillReturnRows(sqlmock.NewRows(referenceColumns).
			AddRow("Table", "public", "orders", "Table", "staging", "orders_raw"))

	meta, err := Metadata(context.Background(), db,
		WithDialect(schema.Postgres),
		WithExcludeSchemas("STAGING"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []string{"public"}, meta.Schemas)
	assert.Equal(t, []schema.Object{{Kind: schema.KindTable, Schema: "public", Name: "orders"}}, meta.Objects)
	assert.Empty(t, meta.References)
}

func TestMetadataCustomQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	defaults, err := DefaultQueries(schema.MySQL)
	require.NoError(t, err)

	expectQuery(mock, defaults.Database).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("shop"))
	expectQuery(mock, "SELECT 'shop'").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("shop"))
	expectQuery(mock, "SELECT kind, owner, name FROM my_objects").
		WillReturnRows(sqlmock.NewRows(objectColumns).AddRow("procedure", "shop", "tidy"))
	expectQuery(mock, defaults.References).
		WillReturnRows(sqlmock.NewRows(referenceColumns))

	meta, err := Metadata(context.Background(), db,
		WithDialect(schema.MySQL),
		WithQueries(Queries{
			Schemas: "SELECT 'shop'",
			Objects: "SELECT kind, owner, name FROM my_objects",
		}))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []schema.Object{{Kind: schema.KindStoredProcedure, Schema: "shop", Name: "tidy"}}, meta.Objects)
}

func TestMetadataUnknownKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q, err := DefaultQueries(schema.MSSQL)
	require.NoError(t, err)

	expectQuery(mock, q.Database).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Shop"))
	expectQuery(mock, q.Schemas).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("dbo"))
	expectQuery(mock, q.Objects).
		WillReturnRows(sqlmock.NewRows(objectColumns).AddRow("Synonym", "dbo", "S1"))

	_, err = Metadata(context.Background(), db)
	require.ErrorIs(t, err, schema.ErrUnknownKind)
	assert.Contains(t, err.Error(), "failed to get objects")
}

func TestMetadataQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("DB_NAME").WillReturnError(assert.AnError)

	_, err = Metadata(context.Background(), db)
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to get database name")
}

func TestMetadataUnknownDialect(t *testing.T) {
	_, err := Metadata(context.Background(), nil, WithDialect(schema.Dialect("db2")))
	require.ErrorIs(t, err, schema.ErrUnknownDialect)
}
