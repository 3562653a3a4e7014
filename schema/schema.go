// Package schema defines the data structures for representing database objects
// and the references between them. These types are used throughout the dbscript
// packages for introspection, graph construction and scripting.
package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownKind is returned when a kind name or code cannot be parsed.
var ErrUnknownKind = errors.New("unknown object kind")

// Kind is the category of a scriptable database object.
// The numeric values are the codes accepted on the command line.
type Kind int

const (
	KindTable           Kind = 1
	KindView            Kind = 2
	KindStoredProcedure Kind = 3
	KindFunction        Kind = 4
	KindSchema          Kind = 5
)

// Kinds lists every scriptable kind ordered by code.
var Kinds = []Kind{KindTable, KindView, KindStoredProcedure, KindFunction, KindSchema}

// String returns the kind name used in metadata rows and output folder names.
func (k Kind) String() string {
	switch k {
	case KindTable:
		return "Table"
	case KindView:
		return "View"
	case KindStoredProcedure:
		return "StoredProcedure"
	case KindFunction:
		return "UserDefinedFunction"
	case KindSchema:
		return "Schema"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Label returns a lower case human readable name, e.g. "stored procedure".
func (k Kind) Label() string {
	switch k {
	case KindStoredProcedure:
		return "stored procedure"
	case KindFunction:
		return "user defined function"
	default:
		return strings.ToLower(k.String())
	}
}

// Valid reports whether k is one of the scriptable kinds.
func (k Kind) Valid() bool {
	return k >= KindTable && k <= KindSchema
}

// ParseKind parses a kind name (case-insensitive) or its numeric code.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		k := Kind(code)
		if !k.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrUnknownKind, code)
		}
		return k, nil
	}
	switch strings.ToLower(s) {
	case "table":
		return KindTable, nil
	case "view":
		return KindView, nil
	case "storedprocedure", "storedroutine", "procedure":
		return KindStoredProcedure, nil
	case "userdefinedfunction", "function":
		return KindFunction, nil
	case "schema":
		return KindSchema, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// ParseKinds parses a comma separated list of kinds. An empty list yields all kinds.
func ParseKinds(list string) ([]Kind, error) {
	if strings.TrimSpace(list) == "" {
		return append([]Kind(nil), Kinds...), nil
	}
	var kinds []Kind
	seen := make(map[Kind]bool)
	for _, part := range strings.Split(list, ",") {
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// Object identifies one database object.
type Object struct {
	// Kind is the object category.
	Kind Kind
	// Schema is the owning schema, empty for KindSchema objects.
	Schema string
	// Name is the bare object name.
	Name string
}

// QualifiedName returns schema.name, or just the name for schema-less kinds.
func (o Object) QualifiedName() string {
	if o.Schema == "" {
		return o.Name
	}
	return o.Schema + "." + o.Name
}

// FileName returns the per-object output file name.
func (o Object) FileName() string {
	return o.QualifiedName() + ".sql"
}

func (o Object) String() string {
	return fmt.Sprintf("%s %s", o.Kind, o.QualifiedName())
}

// Reference is a directed dependency edge: From references To.
type Reference struct {
	From Object
	To   Object
}

// Metadata is a snapshot of the database catalog used to build the dependency graph.
type Metadata struct {
	// Database is the name of the introspected database.
	Database string
	// Schemas lists every schema name.
	Schemas []string
	// Objects lists tables, views, stored procedures and functions.
	Objects []Object
	// References lists the dependency edges between objects.
	References []Reference
}

// ExcludeSchemas returns a copy of m without the named schemas, the objects
// they own and the references touching those objects. The original is not modified.
func (m *Metadata) ExcludeSchemas(names []string) *Metadata {
	if len(names) == 0 {
		return m
	}
	exclude := make(map[string]bool, len(names))
	for _, n := range names {
		exclude[strings.ToLower(n)] = true
	}
	skip := func(o Object) bool {
		if o.Kind == KindSchema {
			return exclude[strings.ToLower(o.Name)]
		}
		return exclude[strings.ToLower(o.Schema)]
	}

	out := &Metadata{Database: m.Database}
	for _, s := range m.Schemas {
		if !exclude[strings.ToLower(s)] {
			out.Schemas = append(out.Schemas, s)
		}
	}
	for _, o := range m.Objects {
		if !skip(o) {
			out.Objects = append(out.Objects, o)
		}
	}
	for _, r := range m.References {
		if !skip(r.From) && !skip(r.To) {
			out.References = append(out.References, r)
		}
	}
	return out
}
