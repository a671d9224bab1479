// Package schema implements the declarative record schema: type definitions
// with single-inheritance nesting, a shared field pool, enums, and the
// resolver that flattens a type path into its concrete field set.
package schema

import "sort"

// Field input kinds.
const (
	KindSelection = "selection"
	KindText      = "text"
	KindList      = "list"
	KindDate      = "date"
	KindBoolean   = "boolean"
	KindNumber    = "number"
	KindStatic    = "static"
)

// Link formats for fields whose values reference other records.
const (
	LinkPlain          = "plain"
	LinkWikilink       = "wikilink"
	LinkQuotedWikilink = "quoted-wikilink"
)

// Storage layout modes.
const (
	LayoutPooled  = "pooled"
	LayoutGrouped = "grouped"
)

// Schema is the root schema document.
type Schema struct {
	Shared map[string]FieldDef `yaml:"shared"`
	Enums  map[string][]string `yaml:"enums"`
	Types  map[string]*TypeDef `yaml:"types"`
}

// TypeDef declares one type node. Nested entries under Children are
// discriminated subtypes that inherit the resolved fields of their parent.
type TypeDef struct {
	Location  string                   `yaml:"location"`
	Layout    string                   `yaml:"layout"`
	Shared    []string                 `yaml:"shared"`
	Fields    map[string]FieldDef      `yaml:"fields"`
	Overrides map[string]FieldOverride `yaml:"overrides"`
	Order     []string                 `yaml:"order"`
	Sections  []string                 `yaml:"sections"`
	Owns      map[string]string        `yaml:"owns"`
	Children  map[string]*TypeDef      `yaml:"children"`
}

// FieldDef declares one attribute.
type FieldDef struct {
	Kind     string `yaml:"kind"`
	Default  any    `yaml:"default"`
	Required bool   `yaml:"required"`
	Enum     string `yaml:"enum"`
	Link     string `yaml:"link"`
}

// FieldOverride adjusts attributes of a shared field the type opted into.
// Only default, required, and the enum reference may change; kind and link
// format are fixed by the shared declaration.
type FieldOverride struct {
	Default  any    `yaml:"default"`
	Required *bool  `yaml:"required"`
	Enum     string `yaml:"enum"`
}

// ResolvedType is the flattened view of one concrete type path: the merged
// field map, its ordering, and everything a caller needs to place and tag
// records of this type.
type ResolvedType struct {
	Path     string
	Name     string
	Fields   map[string]FieldDef
	Order    []string
	Children []string
	Location string
	Layout   string
	Owns     map[string]string
	Sections []string
}

// IsLinkField reports whether the named resolved field expects wikilink
// formatted values.
func (rt *ResolvedType) IsLinkField(name string) bool {
	f, ok := rt.Fields[name]
	if !ok {
		return false
	}
	return f.Link == LinkWikilink || f.Link == LinkQuotedWikilink
}

// OwnerTypes returns the names of top-level types that declare at least one
// ownership relation, in sorted order.
func (s *Schema) OwnerTypes() []string {
	var out []string
	for name, td := range s.Types {
		if len(td.Owns) > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
