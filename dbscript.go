package dbscript

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/lucasefe/dbscript/export"
	"github.com/lucasefe/dbscript/generator"
	"github.com/lucasefe/dbscript/graph"
	"github.com/lucasefe/dbscript/introspect"
	"github.com/lucasefe/dbscript/schema"
	"github.com/lucasefe/dbscript/scripter"
)

// Run connects to the configured database and scripts it.
// A nil logger means slog.Default().
func Run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}
	return RunFromConnectionString(ctx, dsn, cfg, logger)
}

// RunFromConnectionString scripts the database behind connStr. Connection
// settings in cfg are ignored.
func RunFromConnectionString(ctx context.Context, connStr string, cfg *Config, logger *slog.Logger) error {
	dialect, err := schema.ParseDialect(cfg.Dialect)
	if err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info(fmt.Sprintf("Connecting to '%s'...", describe(cfg)))
	db, err := sql.Open(dialect.DriverName(), connStr)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return RunWithDB(ctx, db, cfg, logger)
}

// RunWithDB scripts the database behind db.
func RunWithDB(ctx context.Context, db *sql.DB, cfg *Config, logger *slog.Logger) error {
	if !cfg.Full && !cfg.Separate {
		return ErrNoOutputMode
	}
	dialect, err := schema.ParseDialect(cfg.Dialect)
	if err != nil {
		return err
	}
	kinds, err := schema.ParseKinds(cfg.Types)
	if err != nil {
		return fmt.Errorf("invalid types parameter: %w", err)
	}
	filter, err := cfg.filter()
	if err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run", uuid.NewString())

	meta, err := introspect.Metadata(ctx, db,
		introspect.WithDialect(dialect),
		introspect.WithExcludeSchemas(cfg.ExcludeSchemas...),
		introspect.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to introspect database: %w", err)
	}
	if meta.Database == "" {
		meta.Database = cfg.Database
	}
	if meta.Database == "" {
		return ErrNoDatabase
	}

	logger.Info(fmt.Sprintf("Opened '%s' OK. Building object dependency tree...", meta.Database))
	g := graph.Build(meta, logger)

	if err := exportGraph(ctx, cfg, meta.Database, g, logger); err != nil {
		return err
	}

	var opts []generator.Option
	if len(cfg.TypeMappings) > 0 {
		opts = append(opts, generator.WithTypeMappings(cfg.TypeMappings))
	}

	o := &scripter.Orchestrator{
		Graph:    g,
		Database: meta.Database,
		Connect: func(ctx context.Context) (generator.Provider, error) {
			return generator.Open(ctx, db, dialect, opts...)
		},
		Settings: scripter.Settings{
			Output:         cfg.Output,
			Filter:         filter,
			Dialect:        dialect,
			ExcludeSchemas: cfg.ExcludeSchemas,
			Logger:         logger,
		},
		Kinds:     kinds,
		Combined:  cfg.Full,
		Separate:  cfg.Separate,
		CrossKind: cfg.CrossKind,
	}
	return o.Run(ctx)
}

func exportGraph(ctx context.Context, cfg *Config, database string, g *graph.Graph, logger *slog.Logger) error {
	if cfg.DOT != "" {
		if err := writeDOT(cfg.DOT, g); err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("Dependency graph written to '%s'", cfg.DOT))
	}

	if cfg.Neo4j == nil {
		return nil
	}
	loader, err := export.NewNeo4jLoader(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, logger)
	if err != nil {
		return err
	}
	defer loader.Close(ctx)

	if cfg.Neo4j.Clean {
		if err := loader.CleanGraph(ctx, database); err != nil {
			return fmt.Errorf("failed to clean neo4j graph: %w", err)
		}
	}
	if err := loader.CreateIndexes(ctx); err != nil {
		return err
	}
	return loader.LoadGraph(ctx, database, g)
}

func writeDOT(path string, g *graph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dot file: %w", err)
	}
	if err := export.DOT(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func describe(cfg *Config) string {
	if cfg.Server != "" {
		return cfg.Server
	}
	return cfg.Dialect + " database"
}
