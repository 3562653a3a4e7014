// Package dbscript scripts the objects of a relational database into
// ordered drop and create SQL files.
//
// Schemas, tables, views, stored procedures and user defined functions are
// read from the catalog together with their dependencies. Drops are ordered
// so that dependents go first and creates so that dependencies go first,
// which lets the generated script run without dependency violations.
//
// # Basic Usage
//
// Script a SQL Server database into one file per object and one combined file:
//
//	import "github.com/lucasefe/dbscript"
//
//	cfg := dbscript.DefaultConfig()
//	cfg.Server = "localhost"
//	cfg.Database = "Shop"
//	cfg.User, cfg.Password = "sa", "secret"
//	cfg.Full = true
//	cfg.Separate = true
//	if err := dbscript.Run(ctx, cfg, nil); err != nil {
//	    log.Fatal(err)
//	}
//
// The combined script is written to <output>/<database>.sql and the per object
// files to <output>/<Kind>/<schema>.<name>.sql.
//
// # Configuration
//
// Config can be loaded from YAML:
//
//	cfg, err := dbscript.LoadConfig("dbscript.yaml")
//
// Use Types to restrict the kinds (codes 1 to 5 or names), Filter to match
// object names with a regular expression and ExcludeSchemas to leave whole
// schemas out. PostgreSQL and MySQL are selected with Dialect and usually
// connected with URL:
//
//	cfg.Dialect = "postgres"
//	err := dbscript.RunFromConnectionString(ctx, "postgres://app@localhost/shop?sslmode=disable", cfg, nil)
//
// # Subpackages
//
//   - github.com/lucasefe/dbscript/schema - object kinds, metadata and the name filter
//   - github.com/lucasefe/dbscript/introspect - catalog introspection with functional options
//   - github.com/lucasefe/dbscript/graph - the dependency graph and its traversal
//   - github.com/lucasefe/dbscript/generator - DDL rendering per dialect
//   - github.com/lucasefe/dbscript/scripter - per kind scripters and the concurrent orchestrator
//   - github.com/lucasefe/dbscript/export - Graphviz and Neo4j exports of the dependency graph
package dbscript
