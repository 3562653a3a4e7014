package scripter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/lucasefe/dbscript/generator"
	"github.com/lucasefe/dbscript/graph"
	"github.com/lucasefe/dbscript/schema"
)

// ErrNoOutputMode is returned by Run when neither combined nor separate output is requested.
var ErrNoOutputMode = errors.New("no output mode selected, enable combined or separate output")

// DropOrder is the kind order of the combined drop pass. Creates run in reverse.
var DropOrder = []schema.Kind{
	schema.KindFunction,
	schema.KindStoredProcedure,
	schema.KindView,
	schema.KindTable,
	schema.KindSchema,
}

// Connect opens a provider on its own database session.
type Connect func(ctx context.Context) (generator.Provider, error)

// Orchestrator runs the scripting tasks of one database concurrently.
type Orchestrator struct {
	// Graph is the dependency graph of the database.
	Graph *graph.Graph
	// Database names the combined output file.
	Database string
	// Connect opens one provider session per scripter.
	Connect Connect
	// Settings are passed to every scripter.
	Settings Settings
	// Kinds selects the kinds to script. Empty means every kind.
	Kinds []schema.Kind
	// Combined writes <output>/<database>.sql with every drop followed by every create.
	Combined bool
	// Separate writes one file per object under <output>/<Kind>.
	Separate bool
	// CrossKind lets combined walks follow dependencies into other selected kinds.
	CrossKind bool
}

// CombinedPath returns the path of the combined script.
func (o *Orchestrator) CombinedPath() string {
	return filepath.Join(o.Settings.Output, o.Database+".sql")
}

// orderedKinds returns the selected kinds in drop order.
func (o *Orchestrator) orderedKinds() []schema.Kind {
	if len(o.Kinds) == 0 {
		return DropOrder
	}
	var kinds []schema.Kind
	for _, k := range DropOrder {
		if slices.Contains(o.Kinds, k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Run starts every task and waits for all of them. The first failure
// cancels the remaining tasks and is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.Combined && !o.Separate {
		return ErrNoOutputMode
	}
	if o.Graph == nil {
		o.Graph = graph.Build(nil, o.Settings.Logger)
	}
	logger := o.Settings.logger()

	eg, ctx := errgroup.WithContext(ctx)

	if o.Combined {
		logger.Info(fmt.Sprintf("Generating full database script to '%s'...", o.CombinedPath()))
		eg.Go(func() error {
			return o.runCombined(ctx)
		})
	}

	if o.Separate {
		for _, kind := range o.orderedKinds() {
			eg.Go(func() error {
				return o.runSeparate(ctx, kind)
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	logger.Info("All scripting complete")
	return nil
}

// open builds the scripter of kind on a fresh session.
func (o *Orchestrator) open(ctx context.Context, kind schema.Kind) (*Scripter, error) {
	provider, err := o.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s scripter: %w", kind.Label(), err)
	}
	s, err := New(ctx, kind, provider, o.Settings)
	if err != nil {
		provider.Close()
		return nil, err
	}
	return s, nil
}

func (o *Orchestrator) runSeparate(ctx context.Context, kind schema.Kind) error {
	s, err := o.open(ctx, kind)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Script(ctx)
}

func (o *Orchestrator) runCombined(ctx context.Context) error {
	logger := o.Settings.logger()

	var scripters []*Scripter
	defer func() {
		for _, s := range scripters {
			s.Close()
		}
	}()
	for _, kind := range o.orderedKinds() {
		s, err := o.open(ctx, kind)
		if err != nil {
			return err
		}
		scripters = append(scripters, s)
	}

	if o.CrossKind {
		owners := make(map[schema.Kind]*Scripter, len(scripters))
		for _, s := range scripters {
			owners[s.Kind()] = s
		}
		for _, s := range scripters {
			s.SetOwners(owners)
		}
	}

	path := o.CombinedPath()
	if err := prepareOutputFile(path); err != nil {
		return err
	}
	if err := writeLines(path, nil, false); err != nil {
		return err
	}

	pass := graph.NewPass()

	logger.Info("Scripting drops for full database...")
	for _, s := range scripters {
		lines, err := s.ScriptDrops(ctx, o.Graph, pass)
		if err != nil {
			return err
		}
		if err := writeLines(path, lines, true); err != nil {
			return err
		}
	}

	pass.Reset()

	logger.Info("Scripting creates for full database...")
	for _, s := range slices.Backward(scripters) {
		lines, err := s.ScriptCreates(ctx, o.Graph, pass)
		if err != nil {
			return err
		}
		if err := writeLines(path, lines, true); err != nil {
			return err
		}
	}

	logger.Info("Full database script complete")
	return nil
}
