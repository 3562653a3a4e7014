package scripter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkBlock(t *testing.T) {
	sink := NewSink("GO")
	sink.Block([]string{"SET ANSI_NULLS ON", "SET QUOTED_IDENTIFIER OFF", "CREATE VIEW v AS SELECT 1"})
	sink.Block([]string{"DROP TABLE t"})

	assert.Equal(t, []string{
		"SET ANSI_NULLS ON",
		"GO",
		"SET QUOTED_IDENTIFIER OFF",
		"GO",
		"CREATE VIEW v AS SELECT 1",
		"GO",
		"DROP TABLE t",
		"GO",
	}, sink.Lines())
	assert.Equal(t, 2, sink.Blocks())
}

func TestSinkDirectiveMustStartTheLine(t *testing.T) {
	sink := NewSink("GO")
	sink.Block([]string{"-- SET ANSI_NULLS ON", " SET QUOTED_IDENTIFIER ON", "set ansi_nulls on"})

	assert.Equal(t, []string{"-- SET ANSI_NULLS ON", " SET QUOTED_IDENTIFIER ON", "set ansi_nulls on", "GO"}, sink.Lines())
}

func TestSinkEmptyBlock(t *testing.T) {
	sink := NewSink("GO")
	sink.Block(nil)
	assert.Equal(t, []string{"GO"}, sink.Lines())
}

func TestSinkBlankSeparator(t *testing.T) {
	sink := NewSink("")
	sink.Block([]string{"DROP VIEW IF EXISTS v;"})
	sink.Block([]string{"DROP TABLE IF EXISTS t;"})
	assert.Equal(t, []string{"DROP VIEW IF EXISTS v;", "", "DROP TABLE IF EXISTS t;", ""}, sink.Lines())
}

func TestSinkWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.sql")

	sink := NewSink("GO")
	sink.Block([]string{"DROP TABLE t"})
	require.NoError(t, sink.WriteFile(path, false))

	sink.Reset()
	sink.Block([]string{"CREATE TABLE t"})
	require.NoError(t, sink.WriteFile(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE t\nGO\nCREATE TABLE t\nGO\n", string(data))

	require.NoError(t, sink.WriteFile(path, false))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t\nGO\n", string(data))
}

func TestPrepareOutputFile(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, prepareOutputFile(filepath.Join(dir, "missing.sql")))

	path := filepath.Join(dir, "locked.sql")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o444))

	require.NoError(t, prepareOutputFile(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
