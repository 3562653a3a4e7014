package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	dbgraph "github.com/lucasefe/dbscript/graph"
)

// Neo4jLoader loads the dependency graph into a Neo4j database
// using batch UNWIND queries.
type Neo4jLoader struct {
	driver neo4j.DriverWithContext
	logger *slog.Logger
}

// NewNeo4jLoader connects to Neo4j and returns a ready-to-use loader.
func NewNeo4jLoader(ctx context.Context, uri, user, password string, logger *slog.Logger) (*Neo4jLoader, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Neo4jLoader{driver: driver, logger: logger}, nil
}

// Close releases the underlying Neo4j driver resources.
func (l *Neo4jLoader) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}

// runCypher runs a single Cypher statement with optional parameters.
func (l *Neo4jLoader) runCypher(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, l.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

// CleanGraph removes the previously loaded graph of database.
func (l *Neo4jLoader) CleanGraph(ctx context.Context, database string) error {
	l.logger.Info("cleaning existing dependency graph", "database", database)
	return l.runCypher(ctx,
		"MATCH (n:DbObject {database: $database}) DETACH DELETE n",
		map[string]any{"database": database},
	)
}

// CreateIndexes ensures the required Neo4j indexes exist.
func (l *Neo4jLoader) CreateIndexes(ctx context.Context) error {
	l.logger.Info("creating neo4j indexes")
	indexes := []string{
		"CREATE INDEX db_object_key IF NOT EXISTS FOR (n:DbObject) ON (n.key)",
		"CREATE INDEX db_object_database IF NOT EXISTS FOR (n:DbObject) ON (n.database)",
	}
	for _, q := range indexes {
		if err := l.runCypher(ctx, q, nil); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// LoadGraph upserts one DbObject node per graph node and a DEPENDS_ON
// relationship per dependency edge.
func (l *Neo4jLoader) LoadGraph(ctx context.Context, database string, g *dbgraph.Graph) error {
	nodes := nodeBatch(database, g)
	l.logger.Info("loading objects", "count", len(nodes))
	err := l.runCypher(ctx,
		`UNWIND $batch AS row
		 MERGE (n:DbObject {key: row.key})
		 SET n.database = row.database, n.kind = row.kind,
		     n.schema = row.schema, n.name = row.name`,
		map[string]any{"batch": nodes},
	)
	if err != nil {
		return fmt.Errorf("failed to load objects: %w", err)
	}

	edges := edgeBatch(database, g)
	if len(edges) == 0 {
		return nil
	}
	l.logger.Info("loading dependency edges", "count", len(edges))
	err = l.runCypher(ctx,
		`UNWIND $batch AS row
		 MATCH (from:DbObject {key: row.from}), (to:DbObject {key: row.to})
		 MERGE (from)-[:DEPENDS_ON]->(to)`,
		map[string]any{"batch": edges},
	)
	if err != nil {
		return fmt.Errorf("failed to load dependency edges: %w", err)
	}
	return nil
}

func nodeKey(database string, n *dbgraph.Node) string {
	return database + "/" + VertexID(n)
}

func nodeBatch(database string, g *dbgraph.Graph) []map[string]any {
	batch := make([]map[string]any, 0, g.Len())
	for _, n := range g.Nodes() {
		batch = append(batch, map[string]any{
			"key":      nodeKey(database, n),
			"database": database,
			"kind":     n.Kind().String(),
			"schema":   n.Schema(),
			"name":     n.Name(),
		})
	}
	return batch
}

func edgeBatch(database string, g *dbgraph.Graph) []map[string]any {
	batch := make([]map[string]any, 0, g.EdgeCount())
	for _, n := range g.Nodes() {
		for _, dep := range n.DependsOn() {
			batch = append(batch, map[string]any{
				"from": nodeKey(database, n),
				"to":   nodeKey(database, dep),
			})
		}
	}
	return batch
}
