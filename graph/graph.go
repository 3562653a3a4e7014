package graph

import (
	"log/slog"

	"github.com/lucasefe/dbscript/schema"
)

// Graph is the full set of database objects with their dependency edges.
// The node set never changes after Build.
type Graph struct {
	nodes []*Node
	index map[Key]*Node
	edges int
}

// Build creates one node per schema and object row and links every
// reference whose endpoints can be resolved. References with an unknown
// endpoint are logged and skipped; they never fail the build.
// The graph contains every kind regardless of which kinds are later scripted.
func Build(meta *schema.Metadata, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Graph{index: make(map[Key]*Node)}
	if meta == nil {
		return g
	}

	for _, name := range meta.Schemas {
		g.add(schema.Object{Kind: schema.KindSchema, Name: name})
	}
	for _, obj := range meta.Objects {
		if obj.Kind == schema.KindSchema {
			obj.Schema = ""
		}
		g.add(obj)
	}

	for _, ref := range meta.References {
		from := g.Lookup(ref.From.Kind, ref.From.Schema, ref.From.Name)
		if from == nil {
			logger.Warn("failed to find referencing object",
				"kind", ref.From.Kind, "object", ref.From.QualifiedName())
			continue
		}
		to := g.Lookup(ref.To.Kind, ref.To.Schema, ref.To.Name)
		if to == nil {
			logger.Warn("failed to find referenced object",
				"kind", ref.To.Kind, "object", ref.To.QualifiedName())
			continue
		}
		if link(from, to) {
			g.edges++
		}
	}

	logger.Debug("dependency graph built", "nodes", len(g.nodes), "edges", g.edges)
	return g
}

func (g *Graph) add(obj schema.Object) {
	n := newNode(obj)
	if _, ok := g.index[n.key]; ok {
		return
	}
	g.index[n.key] = n
	g.nodes = append(g.nodes, n)
}

// Lookup finds a node by kind, schema and name, ignoring case.
// The schema is ignored for KindSchema.
func (g *Graph) Lookup(kind schema.Kind, schemaName, name string) *Node {
	if kind == schema.KindSchema {
		schemaName = ""
	}
	return g.index[KeyOf(kind, schemaName, name)]
}

// Nodes returns every node in build order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NodesOfKind returns the nodes of one kind in build order.
func (g *Graph) NodesOfKind(kind schema.Kind) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.Kind() == kind {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of distinct dependency edges.
func (g *Graph) EdgeCount() int { return g.edges }
