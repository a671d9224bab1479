// Package target composes selection criteria into a candidate record set
// under the two-gate safety protocol: a destructive bulk operation needs
// both an explicit selection (or an "all" override) and an explicit execute
// flag before it may touch the store.
package target

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/where"
)

// Selector is the full set of selection criteria a consuming command may
// supply. Execute is gate 2: without it, mutating operations stay dry-run.
type Selector struct {
	TypePath string   `json:"type,omitempty"`
	PathGlob string   `json:"path,omitempty"`
	Where    []string `json:"where,omitempty"`
	ID       string   `json:"id,omitempty"`
	Body     string   `json:"body,omitempty"`
	All      bool     `json:"all,omitempty"`
	Execute  bool     `json:"execute,omitempty"`
}

// Explicit reports whether the selector names at least one narrowing
// criterion. Gate 1 requires this or the All override.
func (s Selector) Explicit() bool {
	return s.TypePath != "" || s.PathGlob != "" || len(s.Where) > 0 || s.ID != "" || s.Body != ""
}

// Candidate is one selected record with everything later stages need.
type Candidate struct {
	Meta     models.RecordMeta
	TypePath string
	Attrs    map[string]any
	Body     string
}

// Result is an ordered candidate set plus non-fatal diagnostics.
type Result struct {
	Records []Candidate
	// NearMisses lists record stems similar to a requested id that
	// matched nothing, for actionable diagnostics.
	NearMisses []string
	// Skipped lists records that could not be read or parsed during
	// identification, with the reason.
	Skipped []string
}

// Resolve scans the whole store and narrows candidates progressively: path
// glob, id, resolved type, body text, and finally where-expressions.
// Resolution errors are returned, never panicked, so callers can render
// diagnostics.
func Resolve(sel Selector, s *schema.Schema, store storage.Provider) (*Result, error) {
	if !sel.Explicit() && !sel.All {
		return nil, &apperr.TargetingError{
			Reason: "no selection criteria given; pass --type, --path, --where, --id, --body, or --all to target every record",
		}
	}

	// Validate where-expressions before any scanning.
	if len(sel.Where) > 0 {
		if err := where.ValidateFields(sel.Where, s, sel.TypePath); err != nil {
			return nil, err
		}
	}

	var exprs []where.Expr
	for _, src := range sel.Where {
		expr, err := where.Parse(src)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}

	if sel.TypePath != "" {
		// Validate the type up front; matching is done per record below so
		// that owned instances living under their owner's folder, outside
		// the type's own output location, are still selected.
		if _, err := s.Resolve(sel.TypePath); err != nil {
			return nil, err
		}
	}

	metas, err := store.List("")
	if err != nil {
		return nil, fmt.Errorf("target: list records: %w", err)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })

	var globRe interface{ MatchString(string) bool }
	if sel.PathGlob != "" {
		re, err := compileGlob(sel.PathGlob)
		if err != nil {
			return nil, err
		}
		globRe = re
	}

	res := &Result{}
	idMatched := false

	for _, meta := range metas {
		if globRe != nil && !globRe.MatchString(meta.Path) {
			continue
		}
		if sel.ID != "" && meta.Stem() != sel.ID {
			continue
		}

		data, err := store.Read(meta.Path)
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %v", meta.Path, err))
			continue
		}
		doc, err := frontmatter.Parse(data)
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %v", meta.Path, err))
			continue
		}

		typePath := ""
		if doc.Attrs != nil {
			if tp, tpErr := s.ResolveTypePathFromFrontmatter(doc.Attrs); tpErr == nil {
				typePath = tp
			}
		}
		if sel.TypePath != "" && !typeMatches(typePath, sel.TypePath) {
			continue
		}
		if sel.Body != "" && !strings.Contains(doc.Body, sel.Body) {
			continue
		}

		ctx := where.Context{Attrs: doc.Attrs, File: meta.File}
		matched := true
		for _, expr := range exprs {
			if !where.Eval(expr, ctx) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		if sel.ID != "" {
			idMatched = true
		}
		res.Records = append(res.Records, Candidate{
			Meta:     meta,
			TypePath: typePath,
			Attrs:    doc.Attrs,
			Body:     doc.Body,
		})
	}

	if sel.ID != "" && !idMatched {
		res.NearMisses = nearMisses(metas, sel.ID)
	}
	return res, nil
}

// typeMatches reports whether a record's resolved type path falls under the
// selected one: selecting a parent type includes its subtypes.
func typeMatches(recordType, selected string) bool {
	if recordType == "" {
		return false
	}
	return recordType == selected || strings.HasPrefix(recordType, selected+"/")
}

// nearMisses returns stems that contain the requested id case-insensitively.
func nearMisses(metas []models.RecordMeta, id string) []string {
	lower := strings.ToLower(id)
	var out []string
	for _, m := range metas {
		stem := m.Stem()
		if stem == "" {
			continue
		}
		if strings.Contains(strings.ToLower(stem), lower) {
			out = append(out, stem)
		}
	}
	sort.Strings(out)
	return out
}

// IsTargetingError reports whether err is a gate-1 selection failure.
func IsTargetingError(err error) bool {
	var te *apperr.TargetingError
	return errors.As(err, &te)
}
