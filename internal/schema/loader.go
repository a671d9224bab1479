package schema

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Load parses and structurally validates a schema document. Malformed
// schemas are fatal here so that downstream components can assume a
// well-formed type graph.
func Load(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("schema: parse: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads and loads a schema from disk, returning the raw bytes as
// well so callers can fingerprint them for drift detection.
func LoadFile(path string) (*Schema, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	s, err := Load(data)
	if err != nil {
		return nil, nil, err
	}
	return s, data, nil
}

func (s *Schema) validate() error {
	if len(s.Types) == 0 {
		return fmt.Errorf("schema: no types declared")
	}

	for _, name := range sortedKeys(s.Shared) {
		if err := validateFieldDef(s, s.Shared[name]); err != nil {
			return fmt.Errorf("schema: shared field %q: %w", name, err)
		}
	}

	for _, name := range sortedKeys(s.Types) {
		td := s.Types[name]
		if td.Location == "" {
			return fmt.Errorf("schema: type %q: location is required", name)
		}
		if err := s.validateType(name, td, nil); err != nil {
			return err
		}
	}
	return nil
}

// validateType checks one type node and recurses into its children.
// inheritedShared carries the shared opt-ins of all ancestors so that
// overrides at deeper levels can be checked.
func (s *Schema) validateType(path string, td *TypeDef, inheritedShared map[string]bool) error {
	if err := validation.Validate(td.Layout,
		validation.In("", LayoutPooled, LayoutGrouped)); err != nil {
		return fmt.Errorf("schema: type %q: layout: %w", path, err)
	}

	sharedHere := make(map[string]bool, len(inheritedShared)+len(td.Shared))
	for name := range inheritedShared {
		sharedHere[name] = true
	}
	for _, name := range td.Shared {
		def, ok := s.Shared[name]
		if !ok {
			return fmt.Errorf("schema: type %q: opts into unknown shared field %q", path, name)
		}
		sharedHere[name] = true
		// An own field may fully replace an opted-in shared field, but a
		// kind mismatch means the schema contradicts itself.
		if own, dup := td.Fields[name]; dup && own.Kind != "" && own.Kind != def.Kind {
			return fmt.Errorf("schema: type %q: field %q declared shared (%s) and own (%s) with conflicting kind",
				path, name, def.Kind, own.Kind)
		}
	}

	for _, name := range sortedKeys(td.Fields) {
		if err := validateFieldDef(s, td.Fields[name]); err != nil {
			return fmt.Errorf("schema: type %q: field %q: %w", path, name, err)
		}
	}

	for _, name := range sortedKeys(td.Overrides) {
		if !sharedHere[name] {
			return fmt.Errorf("schema: type %q: override targets non-shared field %q", path, name)
		}
		if enum := td.Overrides[name].Enum; enum != "" {
			if _, ok := s.Enums[enum]; !ok {
				return fmt.Errorf("schema: type %q: override %q references unknown enum %q", path, name, enum)
			}
		}
	}

	for _, field := range sortedKeys(td.Owns) {
		owned := td.Owns[field]
		if _, ok := s.Types[owned]; !ok {
			return fmt.Errorf("schema: type %q: owns unknown type %q via field %q", path, owned, field)
		}
		if _, own := td.Fields[field]; !own && !sharedHere[field] {
			return fmt.Errorf("schema: type %q: ownership field %q is not declared on the type", path, field)
		}
	}

	for _, name := range sortedKeys(td.Children) {
		if err := s.validateType(path+"/"+name, td.Children[name], sharedHere); err != nil {
			return err
		}
	}
	return nil
}

func validateFieldDef(s *Schema, def FieldDef) error {
	if err := validation.Validate(def.Kind, validation.Required,
		validation.In(KindSelection, KindText, KindList, KindDate, KindBoolean, KindNumber, KindStatic)); err != nil {
		return fmt.Errorf("kind: %w", err)
	}
	if err := validation.Validate(def.Link,
		validation.In("", LinkPlain, LinkWikilink, LinkQuotedWikilink)); err != nil {
		return fmt.Errorf("link: %w", err)
	}
	if def.Enum != "" {
		if _, ok := s.Enums[def.Enum]; !ok {
			return fmt.Errorf("references unknown enum %q", def.Enum)
		}
	}
	return nil
}
