package scripter

import (
	"strings"

	"github.com/lucasefe/dbscript/generator"
	"github.com/lucasefe/dbscript/graph"
	"github.com/lucasefe/dbscript/schema"
)

// rule reports whether (schema, name) is a built-in object.
type rule func(schemaName, name string) bool

func inSchema(names ...string) rule {
	return func(schemaName, _ string) bool {
		for _, n := range names {
			if strings.EqualFold(schemaName, n) {
				return true
			}
		}
		return false
	}
}

func named(names ...string) rule {
	return func(_, name string) bool {
		for _, n := range names {
			if strings.EqualFold(name, n) {
				return true
			}
		}
		return false
	}
}

func prefixed(prefix string) rule {
	return func(_, name string) bool {
		return hasPrefixFold(name, prefix)
	}
}

func prefixedIn(schemaName, prefix string) rule {
	return func(s, name string) bool {
		return strings.EqualFold(s, schemaName) && hasPrefixFold(name, prefix)
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// KindPolicy holds the per-kind rules a scripter applies: which objects are
// built in, how names resolve and which create options the kind needs.
type KindPolicy struct {
	kind  schema.Kind
	rules []rule
}

// PolicyFor returns the policy of kind under dialect.
func PolicyFor(dialect schema.Dialect, kind schema.Kind) KindPolicy {
	p := KindPolicy{kind: kind}
	switch dialect {
	case schema.Postgres:
		p.rules = postgresRules(kind)
	case schema.MySQL:
		p.rules = mysqlRules(kind)
	default:
		p.rules = mssqlRules(kind)
	}
	return p
}

func mssqlRules(kind schema.Kind) []rule {
	switch kind {
	case schema.KindSchema:
		return []rule{named("dbo", "guest", "INFORMATION_SCHEMA", "sys"), prefixed("db_")}
	case schema.KindTable:
		return []rule{inSchema("sys"), named("dtproperties", "sysdiagrams")}
	case schema.KindView:
		return []rule{inSchema("sys", "INFORMATION_SCHEMA")}
	case schema.KindStoredProcedure:
		return []rule{inSchema("sys"), prefixed("dt_"), prefixedIn("dbo", "sp_")}
	case schema.KindFunction:
		return []rule{inSchema("sys"), named("fn_diagramobjects")}
	}
	return nil
}

func postgresRules(kind schema.Kind) []rule {
	reserved := []rule{inSchema("pg_catalog", "information_schema"), func(s, _ string) bool {
		return hasPrefixFold(s, "pg_")
	}}
	if kind == schema.KindSchema {
		return []rule{named("pg_catalog", "information_schema", "public"), prefixed("pg_")}
	}
	return reserved
}

func mysqlRules(kind schema.Kind) []rule {
	reserved := []string{"mysql", "sys", "performance_schema", "information_schema"}
	if kind == schema.KindSchema {
		return []rule{named(reserved...)}
	}
	return []rule{inSchema(reserved...)}
}

// Kind returns the object kind the policy applies to.
func (p KindPolicy) Kind() schema.Kind { return p.kind }

// IsSystemObject reports whether the object is built in and must never be scripted.
func (p KindPolicy) IsSystemObject(schemaName, name string) bool {
	for _, r := range p.rules {
		if r(schemaName, name) {
			return true
		}
	}
	return false
}

// Resolve finds an object of the policy's kind in c, ignoring case.
// The schema is ignored for the Schema kind.
func (p KindPolicy) Resolve(c *Collection, schemaName, name string) (schema.Object, bool) {
	if c == nil || c.kind != p.kind {
		return schema.Object{}, false
	}
	return c.lookup(schemaName, name)
}

// CreateOptions adapts the base create options to the kind.
// Tables carry their constraints and indexes along.
func (p KindPolicy) CreateOptions(base generator.Options) generator.Options {
	if p.kind == schema.KindTable {
		base.DependentConstraints = true
		base.Indexes = true
		base.NoCollation = true
		base.SchemaQualifyForeignKeys = true
	}
	return base
}

// Collection is the live object set of one kind.
type Collection struct {
	kind    schema.Kind
	objects []schema.Object
	index   map[graph.Key]int
}

// NewCollection indexes objects of kind for case-insensitive lookup.
// Objects of other kinds are ignored.
func NewCollection(kind schema.Kind, objects []schema.Object) *Collection {
	c := &Collection{kind: kind, index: make(map[graph.Key]int, len(objects))}
	for _, obj := range objects {
		if obj.Kind != kind {
			continue
		}
		if kind == schema.KindSchema {
			obj.Schema = ""
		}
		key := graph.KeyOf(kind, obj.Schema, obj.Name)
		if _, ok := c.index[key]; ok {
			continue
		}
		c.index[key] = len(c.objects)
		c.objects = append(c.objects, obj)
	}
	return c
}

// Objects returns the collection in load order.
func (c *Collection) Objects() []schema.Object { return c.objects }

// Len returns the number of objects.
func (c *Collection) Len() int { return len(c.objects) }

func (c *Collection) lookup(schemaName, name string) (schema.Object, bool) {
	if c.kind == schema.KindSchema {
		schemaName = ""
	}
	i, ok := c.index[graph.KeyOf(c.kind, schemaName, name)]
	if !ok {
		return schema.Object{}, false
	}
	return c.objects[i], true
}
