package scripter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasefe/dbscript/generator"
	"github.com/lucasefe/dbscript/graph"
	"github.com/lucasefe/dbscript/schema"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// statements drops the separators and directives from a script.
func statements(lines []string) []string {
	var out []string
	for _, l := range lines {
		if l == "GO" || strings.HasPrefix(l, "SET ") {
			continue
		}
		out = append(out, l)
	}
	return out
}

func indexOf(lines []string, s string) int {
	for i, l := range lines {
		if l == s {
			return i
		}
	}
	return -1
}

func TestRunCombined(t *testing.T) {
	meta, db := sampleDatabase()
	out := t.TempDir()

	o := &Orchestrator{
		Graph:    graph.Build(meta, nil),
		Database: meta.Database,
		Connect:  db.connect,
		Settings: Settings{Output: out},
		Combined: true,
	}
	require.NoError(t, o.Run(context.Background()))

	lines := readLines(t, filepath.Join(out, "Shop.sql"))
	assert.Equal(t, []string{
		"DROP UserDefinedFunction sales.F1",
		"DROP StoredProcedure dbo.P2",
		"DROP StoredProcedure dbo.P1",
		"DROP View dbo.V1",
		"DROP Table dbo.T1",
		"DROP Schema sales",
		"CREATE Schema sales",
		"CREATE Table dbo.T1",
		"CREATE View dbo.V1",
		"CREATE StoredProcedure dbo.P2",
		"CREATE StoredProcedure dbo.P1",
		"CREATE UserDefinedFunction sales.F1",
	}, statements(lines))

	assert.Equal(t, "GO", lines[len(lines)-1])
	assert.Equal(t, "GO", lines[indexOf(lines, "SET ANSI_NULLS ON")+1])
	assert.Equal(t, db.opened, db.closed, "every session is closed")
}

func TestRunCombinedEveryObjectTwice(t *testing.T) {
	meta, db := sampleDatabase()
	out := t.TempDir()

	o := &Orchestrator{
		Graph:    graph.Build(meta, nil),
		Database: "Shop",
		Connect:  db.connect,
		Settings: Settings{Output: out},
		Combined: true,
	}
	require.NoError(t, o.Run(context.Background()))

	counts := make(map[string]int)
	for _, stmt := range statements(readLines(t, o.CombinedPath())) {
		_, name, _ := strings.Cut(stmt, " ")
		counts[name]++
	}
	for _, name := range []string{"UserDefinedFunction sales.F1", "StoredProcedure dbo.P1", "StoredProcedure dbo.P2",
		"View dbo.V1", "Table dbo.T1", "Schema sales"} {
		assert.Equal(t, 2, counts[name], name)
	}
	assert.Zero(t, counts["StoredProcedure dbo.sp_helper"])
	assert.Zero(t, counts["Schema dbo"])
}

func TestRunCombinedSelectedKinds(t *testing.T) {
	meta, db := sampleDatabase()
	out := t.TempDir()

	o := &Orchestrator{
		Graph:    graph.Build(meta, nil),
		Database: "Shop",
		Connect:  db.connect,
		Settings: Settings{Output: out},
		Kinds:    []schema.Kind{schema.KindTable, schema.KindView},
		Combined: true,
	}
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{
		"DROP View dbo.V1",
		"DROP Table dbo.T1",
		"CREATE Table dbo.T1",
		"CREATE View dbo.V1",
	}, statements(readLines(t, o.CombinedPath())))
	assert.NoDirExists(t, filepath.Join(out, "Schema"))
}

func TestRunCombinedCrossKind(t *testing.T) {
	var (
		t1 = object(schema.KindTable, "dbo", "T1")
		f1 = object(schema.KindFunction, "dbo", "F1")
		v2 = object(schema.KindView, "dbo", "V2")
	)
	meta := &schema.Metadata{
		Database:   "Shop",
		Objects:    []schema.Object{t1, f1, v2},
		References: []schema.Reference{ref(v2, f1), ref(f1, t1)},
	}
	db := newFakeDatabase(t1, f1, v2)
	out := t.TempDir()

	o := &Orchestrator{
		Graph:     graph.Build(meta, nil),
		Database:  "Shop",
		Connect:   db.connect,
		Settings:  Settings{Output: out},
		Combined:  true,
		CrossKind: true,
	}
	require.NoError(t, o.Run(context.Background()))

	stmts := statements(readLines(t, o.CombinedPath()))
	assert.Equal(t, []string{
		"DROP View dbo.V2",
		"DROP UserDefinedFunction dbo.F1",
		"DROP Table dbo.T1",
		"CREATE Table dbo.T1",
		"CREATE UserDefinedFunction dbo.F1",
		"CREATE View dbo.V2",
	}, stmts)
}

func TestRunSeparate(t *testing.T) {
	meta, db := sampleDatabase()
	out := t.TempDir()

	o := &Orchestrator{
		Graph:    graph.Build(meta, nil),
		Database: "Shop",
		Connect:  db.connect,
		Settings: Settings{Output: out},
		Separate: true,
	}
	require.NoError(t, o.Run(context.Background()))

	for _, path := range []string{
		"Table/dbo.T1.sql",
		"View/dbo.V1.sql",
		"StoredProcedure/dbo.P1.sql",
		"StoredProcedure/dbo.P2.sql",
		"UserDefinedFunction/sales.F1.sql",
		"Schema/sales.sql",
	} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(path)))
	}
	assert.NoFileExists(t, filepath.Join(out, "StoredProcedure", "dbo.sp_helper.sql"))
	assert.NoFileExists(t, filepath.Join(out, "Shop.sql"))
	assert.Equal(t, 5, db.opened)
	assert.Equal(t, db.opened, db.closed)
}

func TestRunBothModes(t *testing.T) {
	meta, db := sampleDatabase()
	out := t.TempDir()

	o := &Orchestrator{
		Graph:    graph.Build(meta, nil),
		Database: "Shop",
		Connect:  db.connect,
		Settings: Settings{Output: out},
		Combined: true,
		Separate: true,
	}
	require.NoError(t, o.Run(context.Background()))

	assert.FileExists(t, filepath.Join(out, "Shop.sql"))
	assert.FileExists(t, filepath.Join(out, "View", "dbo.V1.sql"))
	assert.Len(t, statements(readLines(t, o.CombinedPath())), 12)
}

func TestRunProviderFailure(t *testing.T) {
	meta, db := sampleDatabase()
	boom := errors.New("cannot script encrypted module")
	db.fail["View dbo.V1"] = boom

	o := &Orchestrator{
		Graph:    graph.Build(meta, nil),
		Database: "Shop",
		Connect:  db.connect,
		Settings: Settings{Output: t.TempDir()},
		Combined: true,
		Separate: true,
	}
	err := o.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, db.opened, db.closed)
}

func TestRunConnectFailure(t *testing.T) {
	meta, _ := sampleDatabase()
	refused := errors.New("connection refused")

	o := &Orchestrator{
		Graph:    graph.Build(meta, nil),
		Database: "Shop",
		Connect:  func(context.Context) (generator.Provider, error) { return nil, refused },
		Settings: Settings{Output: t.TempDir()},
		Separate: true,
	}
	err := o.Run(context.Background())
	require.ErrorIs(t, err, refused)
}

func TestRunNoOutputMode(t *testing.T) {
	o := &Orchestrator{Settings: Settings{Output: t.TempDir()}}
	require.ErrorIs(t, o.Run(context.Background()), ErrNoOutputMode)
}
