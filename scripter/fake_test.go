package scripter

import (
	"context"
	"fmt"
	"sync"

	"github.com/lucasefe/dbscript/generator"
	"github.com/lucasefe/dbscript/schema"
)

// fakeDatabase hands out providers over a fixed object set.
type fakeDatabase struct {
	mu      sync.Mutex
	objects []schema.Object
	fail    map[string]error
	opened  int
	closed  int
	options map[string]generator.Options
}

func newFakeDatabase(objects ...schema.Object) *fakeDatabase {
	return &fakeDatabase{
		objects: objects,
		fail:    make(map[string]error),
		options: make(map[string]generator.Options),
	}
}

func (d *fakeDatabase) connect(context.Context) (generator.Provider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened++
	return &fakeProvider{db: d}, nil
}

type fakeProvider struct {
	db *fakeDatabase
}

func (p *fakeProvider) Objects(_ context.Context, kind schema.Kind) ([]schema.Object, error) {
	var out []schema.Object
	for _, obj := range p.db.objects {
		if obj.Kind == kind {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (p *fakeProvider) Script(_ context.Context, obj schema.Object, opts generator.Options) ([]string, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	if err, ok := p.db.fail[obj.String()]; ok {
		return nil, err
	}
	if opts.Drop {
		return []string{fmt.Sprintf("DROP %s %s", obj.Kind, obj.QualifiedName())}, nil
	}
	p.db.options[obj.String()] = opts

	create := fmt.Sprintf("CREATE %s %s", obj.Kind, obj.QualifiedName())
	switch obj.Kind {
	case schema.KindView, schema.KindStoredProcedure, schema.KindFunction:
		return []string{"SET ANSI_NULLS ON", "SET QUOTED_IDENTIFIER ON", create}, nil
	}
	return []string{create}, nil
}

func (p *fakeProvider) Close() error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	p.db.closed++
	return nil
}

func object(kind schema.Kind, schemaName, name string) schema.Object {
	return schema.Object{Kind: kind, Schema: schemaName, Name: name}
}

func ref(from, to schema.Object) schema.Reference {
	return schema.Reference{From: from, To: to}
}

// sampleDatabase is a small database with a view over a table, two mutually
// referencing procedures and a system procedure.
func sampleDatabase() (*schema.Metadata, *fakeDatabase) {
	var (
		t1       = object(schema.KindTable, "dbo", "T1")
		v1       = object(schema.KindView, "dbo", "V1")
		p1       = object(schema.KindStoredProcedure, "dbo", "P1")
		p2       = object(schema.KindStoredProcedure, "dbo", "P2")
		spHelper = object(schema.KindStoredProcedure, "dbo", "sp_helper")
		f1       = object(schema.KindFunction, "sales", "F1")
		dbo      = object(schema.KindSchema, "", "dbo")
		sales    = object(schema.KindSchema, "", "sales")
	)

	meta := &schema.Metadata{
		Database: "Shop",
		Schemas:  []string{"dbo", "sales"},
		Objects:  []schema.Object{t1, v1, p1, p2, spHelper, f1},
		References: []schema.Reference{
			ref(v1, t1),
			ref(p1, p2),
			ref(p2, p1),
			ref(p1, spHelper),
		},
	}
	return meta, newFakeDatabase(dbo, sales, t1, v1, p1, p2, spHelper, f1)
}
