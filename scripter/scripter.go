// Package scripter turns the dependency graph into ordered drop and create
// scripts. A Scripter owns the live objects of one kind; the Orchestrator runs
// scripters concurrently and writes their output.
package scripter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lucasefe/dbscript/generator"
	"github.com/lucasefe/dbscript/graph"
	"github.com/lucasefe/dbscript/schema"
)

// Settings are shared by every scripter of a run.
type Settings struct {
	// Output is the root output directory.
	Output string
	// Filter selects objects by bare name. Nil matches everything.
	Filter *schema.Filter
	// Dialect selects system object rules and the batch separator.
	Dialect schema.Dialect
	// ExcludeSchemas names schemas whose objects are never scripted.
	ExcludeSchemas []string
	// Logger receives progress and skip diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

func (s Settings) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s Settings) separator() string {
	return s.Dialect.BatchSeparator()
}

// excluded reports whether obj lives in, or is, an excluded schema.
func (s Settings) excluded(obj schema.Object) bool {
	name := obj.Schema
	if obj.Kind == schema.KindSchema {
		name = obj.Name
	}
	for _, ex := range s.ExcludeSchemas {
		if strings.EqualFold(ex, name) {
			return true
		}
	}
	return false
}

// Scripter renders the objects of one kind.
type Scripter struct {
	kind       schema.Kind
	policy     KindPolicy
	provider   generator.Provider
	collection *Collection
	settings   Settings
	folder     string
	logger     *slog.Logger
	owners     map[schema.Kind]*Scripter
}

// New loads the live objects of kind through provider and creates the kind's
// output folder. The scripter takes ownership of provider.
func New(ctx context.Context, kind schema.Kind, provider generator.Provider, settings Settings) (*Scripter, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", schema.ErrUnknownKind, int(kind))
	}

	objects, err := provider.Objects(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s collection: %w", kind.Label(), err)
	}

	s := &Scripter{
		kind:       kind,
		policy:     PolicyFor(settings.Dialect, kind),
		provider:   provider,
		collection: NewCollection(kind, objects),
		settings:   settings,
		folder:     filepath.Join(settings.Output, kind.String()),
		logger:     settings.logger().With("kind", kind.String()),
	}

	if err := ensureDir(s.folder); err != nil {
		return nil, err
	}

	s.logger.Debug("collection loaded", "objects", s.collection.Len())
	return s, nil
}

// Kind returns the kind the scripter owns.
func (s *Scripter) Kind() schema.Kind { return s.kind }

// Folder returns the per-kind output folder.
func (s *Scripter) Folder() string { return s.folder }

// Collection returns the live objects of the kind.
func (s *Scripter) Collection() *Collection { return s.collection }

// Close closes the provider session.
func (s *Scripter) Close() error {
	return s.provider.Close()
}

// Resolve finds an object of the scripter's own kind by schema and name.
func (s *Scripter) Resolve(schemaName, name string) (schema.Object, bool) {
	return s.policy.Resolve(s.collection, schemaName, name)
}

// SetOwners lets walks resolve and render nodes of other kinds through the
// scripter owning them. Without owners a walk never leaves its own kind.
func (s *Scripter) SetOwners(owners map[schema.Kind]*Scripter) {
	s.owners = owners
}

// owner returns the scripter responsible for nodes of kind.
func (s *Scripter) owner(kind schema.Kind) *Scripter {
	if kind == s.kind {
		return s
	}
	return s.owners[kind]
}

// ScriptDrops walks every graph node of the scripter's kind towards its
// dependents and returns the drop statements, dependents first.
func (s *Scripter) ScriptDrops(ctx context.Context, g *graph.Graph, pass *graph.Pass) ([]string, error) {
	return s.walk(ctx, g, pass, graph.Reverse, true)
}

// ScriptCreates walks every graph node of the scripter's kind towards its
// dependencies and returns the create statements, dependencies first.
func (s *Scripter) ScriptCreates(ctx context.Context, g *graph.Graph, pass *graph.Pass) ([]string, error) {
	return s.walk(ctx, g, pass, graph.Forward, false)
}

func (s *Scripter) walk(ctx context.Context, g *graph.Graph, pass *graph.Pass, dir graph.Direction, drop bool) ([]string, error) {
	sink := NewSink(s.settings.separator())

	accept := func(n *graph.Node) bool {
		s.logger.Debug("checking object", "node", n.String())
		owner, obj, ok := s.resolve(n)
		if !ok {
			return false
		}
		if reason := owner.skipReason(obj); reason != "" {
			s.logger.Debug(fmt.Sprintf("Skipping %s '%s'. %s", obj.Kind.Label(), obj.QualifiedName(), reason))
			return false
		}
		return true
	}
	emit := func(n *graph.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		owner, obj, _ := s.resolve(n)
		lines, err := owner.render(ctx, obj, drop)
		if err != nil {
			return err
		}
		sink.Block(lines)
		return nil
	}

	for _, n := range g.NodesOfKind(s.kind) {
		if err := pass.Walk(n, dir, accept, emit); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("walk complete", "direction", dir.String(), "objects", sink.Blocks())
	return sink.Lines(), nil
}

// resolve finds the live object behind n through its owning scripter.
func (s *Scripter) resolve(n *graph.Node) (*Scripter, schema.Object, bool) {
	owner := s.owner(n.Kind())
	if owner == nil {
		return nil, schema.Object{}, false
	}
	obj, ok := owner.Resolve(n.Schema(), n.Name())
	if !ok {
		return nil, schema.Object{}, false
	}
	return owner, obj, true
}

// skipReason returns why obj must not be scripted, or "" when it may be.
func (s *Scripter) skipReason(obj schema.Object) string {
	switch {
	case s.settings.excluded(obj):
		return "Excluded schema."
	case !s.settings.Filter.Match(obj.Name):
		return "Filtered object."
	case s.policy.IsSystemObject(obj.Schema, obj.Name):
		return "System object."
	}
	return ""
}

func (s *Scripter) render(ctx context.Context, obj schema.Object, drop bool) ([]string, error) {
	var opts generator.Options
	if drop {
		opts = generator.DropOptions()
	} else {
		opts = s.policy.CreateOptions(generator.CreateOptions())
	}
	s.logger.Debug("scripting object", "object", obj.String(), "drop", drop)
	return s.provider.Script(ctx, obj, opts)
}

// Script writes one file per eligible object to the kind's folder, holding
// the object's drop followed by its create. No dependency walk takes place.
func (s *Scripter) Script(ctx context.Context) error {
	sink := NewSink(s.settings.separator())

	for _, obj := range s.collection.Objects() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if reason := s.skipReason(obj); reason != "" {
			s.logger.Debug(fmt.Sprintf("Skipping %s '%s'. %s", obj.Kind.Label(), obj.QualifiedName(), reason))
			continue
		}

		path := filepath.Join(s.folder, obj.FileName())
		s.logger.Info(fmt.Sprintf("Scripting %s '%s' to %s", obj.Kind.Label(), obj.QualifiedName(), path))

		if err := prepareOutputFile(path); err != nil {
			return err
		}

		for _, drop := range []bool{true, false} {
			lines, err := s.render(ctx, obj, drop)
			if err != nil {
				return err
			}
			sink.Reset()
			sink.Block(lines)
			if err := sink.WriteFile(path, !drop); err != nil {
				return err
			}
		}
	}

	return nil
}
