package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

// DiscriminatorName returns the frontmatter field that selects a subtype
// among the children of parentPath: "type" at the root, and
// "<parent-leaf>-type" for each nested level.
func DiscriminatorName(parentPath string) string {
	if parentPath == "" {
		return "type"
	}
	segs := strings.Split(parentPath, "/")
	return segs[len(segs)-1] + "-type"
}

// Resolve flattens the slash-delimited typePath into its concrete view.
// An unresolvable path is reported, never guessed.
func (s *Schema) Resolve(typePath string) (*ResolvedType, error) {
	if typePath == "" {
		return nil, &apperr.SchemaResolutionError{Reason: "empty type path"}
	}
	segs := strings.Split(typePath, "/")

	node, ok := s.Types[segs[0]]
	if !ok {
		return nil, &apperr.SchemaResolutionError{TypePath: typePath, Reason: "unknown type"}
	}

	rt := &ResolvedType{
		Path:     segs[0],
		Name:     segs[0],
		Fields:   make(map[string]FieldDef),
		Location: node.Location,
		Layout:   layoutOrDefault(node.Layout),
		Owns:     map[string]string{},
	}
	sharedSet := make(map[string]bool)
	if err := s.mergeNode(rt, node, sharedSet); err != nil {
		return nil, err
	}

	for _, seg := range segs[1:] {
		child, ok := node.Children[seg]
		if !ok {
			return nil, &apperr.SchemaResolutionError{TypePath: typePath, Reason: fmt.Sprintf("unknown subtype %q", seg)}
		}
		node = child
		rt.Path = rt.Path + "/" + seg
		rt.Name = seg
		if node.Location != "" {
			rt.Location = node.Location
		}
		if node.Layout != "" {
			rt.Layout = layoutOrDefault(node.Layout)
		}
		if err := s.mergeNode(rt, node, sharedSet); err != nil {
			return nil, err
		}
	}

	rt.Children = childNames(node)
	rt.Order = orderFields(rt.Order, node.Order)
	if len(node.Sections) > 0 {
		rt.Sections = append([]string(nil), node.Sections...)
	}
	return rt, nil
}

// mergeNode applies one type node onto the accumulated resolved view in
// strict precedence order: opted-in shared fields, then own declarations
// (add or fully replace), then attribute overrides on shared fields only.
// sharedSet accumulates which resolved fields came from the shared pool, at
// this node or an ancestor, since only those may be overridden.
func (s *Schema) mergeNode(rt *ResolvedType, node *TypeDef, sharedSet map[string]bool) error {
	for _, name := range node.Shared {
		def, ok := s.Shared[name]
		if !ok {
			return &apperr.SchemaResolutionError{TypePath: rt.Path, Reason: fmt.Sprintf("unknown shared field %q", name)}
		}
		rt.setField(name, def)
		sharedSet[name] = true
	}

	for _, name := range sortedKeys(node.Fields) {
		rt.setField(name, node.Fields[name])
	}

	for _, name := range sortedKeys(node.Overrides) {
		ov := node.Overrides[name]
		def, ok := rt.Fields[name]
		if !ok || !sharedSet[name] {
			return &apperr.SchemaResolutionError{TypePath: rt.Path, Reason: fmt.Sprintf("override targets non-shared field %q", name)}
		}
		if ov.Default != nil {
			def.Default = ov.Default
		}
		if ov.Required != nil {
			def.Required = *ov.Required
		}
		if ov.Enum != "" {
			def.Enum = ov.Enum
		}
		rt.Fields[name] = def
	}

	for field, owned := range node.Owns {
		rt.Owns[field] = owned
	}
	return nil
}

// FieldsFor is a convenience over Resolve returning just the merged field
// map. Pure function of (schema, typePath): no I/O, deterministic.
func (s *Schema) FieldsFor(typePath string) (map[string]FieldDef, error) {
	rt, err := s.Resolve(typePath)
	if err != nil {
		return nil, err
	}
	return rt.Fields, nil
}

// ResolveTypePathFromFrontmatter walks discriminators from the root. A
// missing root discriminator or an unrecognized subtype tag is an error; a
// missing discriminator at a nested level stops the walk and yields the path
// accumulated so far, since the parent type is itself concrete.
func (s *Schema) ResolveTypePathFromFrontmatter(attrs map[string]any) (string, error) {
	root, ok := stringAttr(attrs, DiscriminatorName(""))
	if !ok {
		return "", &apperr.SchemaResolutionError{Reason: "missing discriminator \"type\""}
	}
	node, ok := s.Types[root]
	if !ok {
		return "", &apperr.SchemaResolutionError{TypePath: root, Reason: "unknown type"}
	}

	path := root
	for len(node.Children) > 0 {
		disc := DiscriminatorName(path)
		tag, ok := stringAttr(attrs, disc)
		if !ok {
			return path, nil
		}
		child, ok := node.Children[tag]
		if !ok {
			return "", &apperr.SchemaResolutionError{TypePath: path, Reason: fmt.Sprintf("unrecognized subtype %q in %q", tag, disc)}
		}
		node = child
		path = path + "/" + tag
	}
	return path, nil
}

// ConcreteTypePaths returns every resolvable type path in the schema,
// sorted. Both inner nodes and leaves are included: a record may stop at
// any level of the hierarchy.
func (s *Schema) ConcreteTypePaths() []string {
	var out []string
	var walk func(prefix string, node *TypeDef)
	walk = func(prefix string, node *TypeDef) {
		out = append(out, prefix)
		for _, name := range sortedKeys(node.Children) {
			walk(prefix+"/"+name, node.Children[name])
		}
	}
	for _, name := range sortedKeys(s.Types) {
		walk(name, s.Types[name])
	}
	return out
}

func (rt *ResolvedType) setField(name string, def FieldDef) {
	if _, ok := rt.Fields[name]; !ok {
		rt.Order = append(rt.Order, name)
	}
	rt.Fields[name] = def
}

// orderFields places explicitly ordered names first, then the remaining
// accumulated names in merge order.
func orderFields(accumulated, explicit []string) []string {
	if len(explicit) == 0 {
		return accumulated
	}
	out := make([]string, 0, len(accumulated))
	placed := make(map[string]bool, len(explicit))
	present := make(map[string]bool, len(accumulated))
	for _, n := range accumulated {
		present[n] = true
	}
	for _, n := range explicit {
		if present[n] && !placed[n] {
			out = append(out, n)
			placed[n] = true
		}
	}
	for _, n := range accumulated {
		if !placed[n] {
			out = append(out, n)
		}
	}
	return out
}

func layoutOrDefault(layout string) string {
	if layout == "" {
		return LayoutPooled
	}
	return layout
}

func childNames(node *TypeDef) []string {
	return sortedKeys(node.Children)
}

func stringAttr(attrs map[string]any, key string) (string, bool) {
	v, ok := attrs[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
