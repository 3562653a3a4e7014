// Package export renders the dependency graph for inspection outside the
// scripting run: as a Graphviz document or as nodes and relationships in Neo4j.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	dbgraph "github.com/lucasefe/dbscript/graph"
	"github.com/lucasefe/dbscript/schema"
)

var kindShapes = map[schema.Kind]string{
	schema.KindTable:           "box",
	schema.KindView:            "ellipse",
	schema.KindStoredProcedure: "hexagon",
	schema.KindFunction:        "octagon",
	schema.KindSchema:          "folder",
}

// VertexID returns the identifier of a node in exported graphs.
func VertexID(n *dbgraph.Node) string {
	return n.Kind().String() + " " + n.Object().QualifiedName()
}

// Directed converts g into a directed graph with an edge from every object
// to each object it depends on.
func Directed(g *dbgraph.Graph) (graph.Graph[string, *dbgraph.Node], error) {
	out := graph.New(VertexID, graph.Directed())

	for _, n := range g.Nodes() {
		err := out.AddVertex(n,
			graph.VertexAttribute("label", n.Object().QualifiedName()),
			graph.VertexAttribute("shape", kindShapes[n.Kind()]),
		)
		if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, fmt.Errorf("failed to add vertex %s: %w", VertexID(n), err)
		}
	}

	for _, n := range g.Nodes() {
		for _, dep := range n.DependsOn() {
			err := out.AddEdge(VertexID(n), VertexID(dep))
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, fmt.Errorf("failed to add edge %s -> %s: %w", VertexID(n), VertexID(dep), err)
			}
		}
	}

	return out, nil
}

// DOT writes g to w in Graphviz DOT format.
func DOT(w io.Writer, g *dbgraph.Graph) error {
	out, err := Directed(g)
	if err != nil {
		return err
	}
	if err := draw.DOT(out, w, draw.GraphAttribute("rankdir", "LR")); err != nil {
		return fmt.Errorf("failed to render dot: %w", err)
	}
	return nil
}
