// Package graph builds the dependency graph of database objects and walks it
// in drop or create order.
//
// A graph is built once per run from a metadata snapshot:
//
//	g := graph.Build(meta, logger)
//	pass := graph.NewPass()
//	err := pass.Walk(node, graph.Forward, accept, emit)
//
// Nodes carry no traversal state. Every pass owns its visited set, so several
// goroutines may walk the same graph with their own passes.
package graph

import (
	"fmt"

	"github.com/lucasefe/dbscript/schema"
	"golang.org/x/text/cases"
)

// Key is the case-folded identity of a node.
type Key struct {
	Kind   schema.Kind
	Schema string
	Name   string
}

// KeyOf returns the identity of the given object. Names are compared
// case-insensitively, so the key holds folded names.
func KeyOf(kind schema.Kind, schemaName, name string) Key {
	// A Caser is stateful; one per call keeps KeyOf safe for concurrent use.
	fold := cases.Fold()
	return Key{Kind: kind, Schema: fold.String(schemaName), Name: fold.String(name)}
}

// Node is one database object in the dependency graph.
type Node struct {
	object schema.Object
	key    Key

	dependsOn  []*Node
	dependents []*Node
	edges      map[*Node]struct{}
}

func newNode(obj schema.Object) *Node {
	return &Node{
		object: obj,
		key:    KeyOf(obj.Kind, obj.Schema, obj.Name),
		edges:  make(map[*Node]struct{}),
	}
}

// Object returns the database object the node represents.
func (n *Node) Object() schema.Object { return n.object }

// Kind returns the object kind.
func (n *Node) Kind() schema.Kind { return n.object.Kind }

// Schema returns the owning schema name; empty for schemas.
func (n *Node) Schema() string { return n.object.Schema }

// Name returns the bare object name.
func (n *Node) Name() string { return n.object.Name }

// Key returns the case-insensitive identity of the node.
func (n *Node) Key() Key { return n.key }

// Equal reports whether both nodes identify the same object.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.key == other.key
}

// DependsOn returns the objects this node references, in insertion order.
func (n *Node) DependsOn() []*Node { return n.dependsOn }

// Dependents returns the objects referencing this node, in insertion order.
func (n *Node) Dependents() []*Node { return n.dependents }

func (n *Node) String() string {
	return fmt.Sprintf("%s, %s", n.object.Kind, n.object.QualifiedName())
}

// link records that from references to. It reports false for self edges
// and for edges that already exist.
func link(from, to *Node) bool {
	if from.Equal(to) {
		return false
	}
	if _, ok := from.edges[to]; ok {
		return false
	}
	from.edges[to] = struct{}{}
	from.dependsOn = append(from.dependsOn, to)
	to.dependents = append(to.dependents, from)
	return true
}
