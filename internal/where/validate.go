package where

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/schema"
)

// ValidateFields statically checks a set of where-expressions. Syntax is
// always checked. When typePath names a known type, every referenced
// attribute must exist in its resolved field set (file.* metadata and the
// type's discriminator fields are always allowed). With an empty typePath
// the query spans heterogeneous types and field checking is deliberately
// skipped: there is no single field set to check against.
func ValidateFields(exprs []string, s *schema.Schema, typePath string) error {
	var problems []string

	var allowed map[string]bool
	if typePath != "" {
		rt, err := s.Resolve(typePath)
		if err != nil {
			return err
		}
		allowed = make(map[string]bool, len(rt.Fields)+2)
		for name := range rt.Fields {
			allowed[name] = true
		}
		allowed[schema.DiscriminatorName("")] = true
		segs := strings.Split(typePath, "/")
		for i := 1; i <= len(segs); i++ {
			allowed[schema.DiscriminatorName(strings.Join(segs[:i], "/"))] = true
		}
	}

	unknown := make(map[string]bool)
	for _, src := range exprs {
		expr, err := Parse(src)
		if err != nil {
			problems = append(problems, fmt.Sprintf("malformed expression %q: %v", src, err))
			continue
		}
		if allowed == nil {
			continue
		}
		for _, field := range expr.Fields() {
			if !allowed[field] && !unknown[field] {
				unknown[field] = true
				problems = append(problems, fmt.Sprintf("field %q does not exist on type %q", field, typePath))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return &apperr.WhereValidationError{Problems: problems}
}
