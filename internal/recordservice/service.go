// Package recordservice coordinates schema, storage, ownership, and
// targeting into the operations consuming commands call: list, get, bulk
// edit, bulk delete, and reference checking. Every operation builds its
// resolved types and ownership index fresh, so a stale index can never
// authorize an unsafe write.
package recordservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/ownership"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/target"
)

// Service executes record operations against one vault.
type Service struct {
	store  storage.Provider
	schema *schema.Schema
}

// NewService creates a record service over the given store and schema.
func NewService(store storage.Provider, s *schema.Schema) *Service {
	return &Service{store: store, schema: s}
}

// ListItem is one row of a list operation.
type ListItem struct {
	Path      string         `json:"path"`
	TypePath  string         `json:"type_path,omitempty"`
	Title     string         `json:"title,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// Detail is the full representation of one record.
type Detail struct {
	models.Record
	Owner *ownership.Info  `json:"owner,omitempty"`
	Owned []ownership.Info `json:"owned,omitempty"`
}

// ChangeSet describes a bulk frontmatter edit.
type ChangeSet struct {
	Set    map[string]any    `json:"set,omitempty"`
	Rename map[string]string `json:"rename,omitempty"`
	Remove []string          `json:"remove,omitempty"`
}

func (c ChangeSet) empty() bool {
	return len(c.Set) == 0 && len(c.Rename) == 0 && len(c.Remove) == 0
}

// Change operations.
const (
	OpSet    = "set"
	OpRename = "rename"
	OpRemove = "remove"
	OpDelete = "delete"
)

// Change records one pending or applied mutation. Preview and executed
// reports carry the same shape so automation can diff them.
type Change struct {
	Path  string `json:"path"`
	Op    string `json:"op"`
	Field string `json:"field,omitempty"`
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
}

// RecordError is a per-record failure collected while a batch continues.
type RecordError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Report is the outcome of a bulk operation, dry-run or executed.
type Report struct {
	DryRun     bool          `json:"dry_run"`
	Changes    []Change      `json:"changes"`
	Errors     []RecordError `json:"errors,omitempty"`
	Skipped    []string      `json:"skipped,omitempty"`
	NearMisses []string      `json:"near_misses,omitempty"`
}

// List resolves the selector and returns matching records in path order.
func (s *Service) List(_ context.Context, sel target.Selector) ([]ListItem, *target.Result, error) {
	res, err := target.Resolve(sel, s.schema, s.store)
	if err != nil {
		return nil, nil, err
	}
	items := make([]ListItem, 0, len(res.Records))
	for _, c := range res.Records {
		items = append(items, ListItem{
			Path:      c.Meta.Path,
			TypePath:  c.TypePath,
			Title:     titleOf(c),
			Attrs:     c.Attrs,
			UpdatedAt: c.Meta.File.ModifiedAt,
		})
	}
	return items, res, nil
}

// Get reads one record and enriches it with its ownership relations.
func (s *Service) Get(_ context.Context, path string) (*Detail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	doc, err := frontmatter.Parse(data)
	if err != nil {
		return nil, err
	}

	idx, err := ownership.BuildIndex(s.schema, s.store)
	if err != nil {
		return nil, err
	}

	typePath := ""
	if doc.Attrs != nil {
		if tp, tpErr := s.schema.ResolveTypePathFromFrontmatter(doc.Attrs); tpErr == nil {
			typePath = tp
		}
	}

	d := &Detail{
		Record: models.Record{
			Path:     path,
			TypePath: typePath,
			Title:    titleFromAttrs(doc.Attrs, path),
			Attrs:    doc.Attrs,
			Body:     doc.Body,
			Checksum: checksum.Sum(data),
		},
		Owned: idx.OwnedBy(path),
	}
	if info, ok := idx.IsOwned(path); ok {
		d.Owner = &info
	}
	return d, nil
}

// BulkEdit applies a frontmatter change set to every targeted record.
// Without the Execute flag the result is a preview and nothing is written.
// A rename whose target field already exists on any matched record aborts
// the entire batch before any write: the operation is ill-defined, not one
// file broken. Individual parse or write failures are collected while the
// batch continues.
func (s *Service) BulkEdit(_ context.Context, sel target.Selector, changes ChangeSet) (*Report, error) {
	if changes.empty() {
		return nil, fmt.Errorf("recordservice: no changes given")
	}

	res, err := target.Resolve(sel, s.schema, s.store)
	if err != nil {
		return nil, err
	}

	// Class-level conflict check before anything is touched.
	for _, c := range res.Records {
		for oldName, newName := range changes.Rename {
			if _, hasOld := c.Attrs[oldName]; !hasOld {
				continue
			}
			if _, hasNew := c.Attrs[newName]; hasNew {
				return nil, fmt.Errorf("recordservice: rename %s -> %s: field already exists on %s: %w",
					oldName, newName, c.Meta.Path, apperr.ErrConflict)
			}
		}
	}

	report := &Report{
		DryRun:     !sel.Execute,
		Changes:    []Change{},
		Skipped:    res.Skipped,
		NearMisses: res.NearMisses,
	}

	var idx *ownership.Index
	var locate ownership.Locator
	if sel.Execute {
		idx, err = ownership.BuildIndex(s.schema, s.store)
		if err != nil {
			return nil, err
		}
		locate, err = s.locator()
		if err != nil {
			return nil, err
		}
	}

	for _, c := range res.Records {
		pending := pendingChanges(c, changes)
		if len(pending) == 0 {
			continue
		}
		report.Changes = append(report.Changes, pending...)

		if !sel.Execute {
			continue
		}
		if err := s.applyChanges(c, pending, idx, locate); err != nil {
			report.Errors = append(report.Errors, RecordError{Path: c.Meta.Path, Err: err.Error()})
		}
	}
	return report, nil
}

// BulkDelete removes every targeted record, refusing records that still own
// children: deleting an owner would orphan its exclusively held records.
func (s *Service) BulkDelete(_ context.Context, sel target.Selector) (*Report, error) {
	res, err := target.Resolve(sel, s.schema, s.store)
	if err != nil {
		return nil, err
	}
	idx, err := ownership.BuildIndex(s.schema, s.store)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]bool, len(res.Records))
	for _, c := range res.Records {
		selected[c.Meta.Path] = true
	}

	report := &Report{
		DryRun:     !sel.Execute,
		Changes:    []Change{},
		Skipped:    res.Skipped,
		NearMisses: res.NearMisses,
	}

	for _, c := range res.Records {
		var orphaned []string
		for _, info := range idx.OwnedBy(c.Meta.Path) {
			if !selected[info.OwnedPath] {
				orphaned = append(orphaned, info.OwnedPath)
			}
		}
		if len(orphaned) > 0 {
			report.Errors = append(report.Errors, RecordError{
				Path: c.Meta.Path,
				Err:  fmt.Sprintf("still owns %d record(s) not in this selection: %v", len(orphaned), orphaned),
			})
			continue
		}

		report.Changes = append(report.Changes, Change{Path: c.Meta.Path, Op: OpDelete})
		if !sel.Execute {
			continue
		}
		if err := s.store.Delete(c.Meta.Path); err != nil {
			report.Errors = append(report.Errors, RecordError{Path: c.Meta.Path, Err: err.Error()})
		}
	}
	return report, nil
}

// CheckProblem is one validation finding on one record.
type CheckProblem struct {
	Path    string `json:"path"`
	Problem string `json:"problem"`
}

// CheckReport summarises reference and field validation over a selection.
type CheckReport struct {
	Checked  int            `json:"checked"`
	Problems []CheckProblem `json:"problems,omitempty"`
}

// Check validates targeted records: ownership of referenced records,
// presence of required fields, and enum membership of selection fields.
func (s *Service) Check(_ context.Context, sel target.Selector) (*CheckReport, error) {
	res, err := target.Resolve(sel, s.schema, s.store)
	if err != nil {
		return nil, err
	}
	idx, err := ownership.BuildIndex(s.schema, s.store)
	if err != nil {
		return nil, err
	}
	locate, err := s.locator()
	if err != nil {
		return nil, err
	}

	report := &CheckReport{Checked: len(res.Records)}
	for _, c := range res.Records {
		if c.TypePath == "" {
			report.Problems = append(report.Problems, CheckProblem{Path: c.Meta.Path, Problem: "unresolvable type"})
			continue
		}
		rt, err := s.schema.Resolve(c.TypePath)
		if err != nil {
			report.Problems = append(report.Problems, CheckProblem{Path: c.Meta.Path, Problem: err.Error()})
			continue
		}

		for _, name := range rt.Order {
			def := rt.Fields[name]
			value, present := c.Attrs[name]
			if def.Required && (!present || value == nil) {
				report.Problems = append(report.Problems, CheckProblem{
					Path: c.Meta.Path, Problem: fmt.Sprintf("required field %q is missing", name),
				})
				continue
			}
			if !present || def.Kind != schema.KindSelection || def.Enum == "" {
				continue
			}
			if sv, ok := value.(string); ok && !containsString(s.schema.Enums[def.Enum], sv) {
				report.Problems = append(report.Problems, CheckProblem{
					Path: c.Meta.Path, Problem: fmt.Sprintf("field %q: %q is not in enum %q", name, sv, def.Enum),
				})
			}
		}

		for _, violation := range ownership.ValidateReferences(rt, idx, c.Meta.Path, c.Attrs, locate) {
			report.Problems = append(report.Problems, CheckProblem{Path: c.Meta.Path, Problem: violation.Error()})
		}
	}
	return report, nil
}

// pendingChanges computes the change records one candidate would receive,
// in deterministic field order.
func pendingChanges(c target.Candidate, changes ChangeSet) []Change {
	var out []Change

	for _, field := range sortedKeys(changes.Set) {
		newValue := changes.Set[field]
		out = append(out, Change{
			Path: c.Meta.Path, Op: OpSet, Field: field,
			Old: c.Attrs[field], New: newValue,
		})
	}
	for _, oldName := range sortedKeys(changes.Rename) {
		if _, ok := c.Attrs[oldName]; !ok {
			continue
		}
		out = append(out, Change{
			Path: c.Meta.Path, Op: OpRename, Field: oldName,
			Old: oldName, New: changes.Rename[oldName],
		})
	}
	for _, field := range changes.Remove {
		value, ok := c.Attrs[field]
		if !ok {
			continue
		}
		out = append(out, Change{Path: c.Meta.Path, Op: OpRemove, Field: field, Old: value})
	}
	return out
}

// applyChanges mutates one record's attributes and rewrites the file with
// frontmatter serialized in the resolved type's field order.
func (s *Service) applyChanges(c target.Candidate, pending []Change, idx *ownership.Index, locate ownership.Locator) error {
	attrs := make(map[string]any, len(c.Attrs)+len(pending))
	for k, v := range c.Attrs {
		attrs[k] = v
	}
	for _, ch := range pending {
		switch ch.Op {
		case OpSet:
			attrs[ch.Field] = ch.New
		case OpRename:
			attrs[ch.New.(string)] = attrs[ch.Field]
			delete(attrs, ch.Field)
		case OpRemove:
			delete(attrs, ch.Field)
		}
	}

	var order []string
	if tp, err := s.schema.ResolveTypePathFromFrontmatter(attrs); err == nil {
		if rt, rErr := s.schema.Resolve(tp); rErr == nil {
			order = rt.Order
			if violations := ownership.ValidateReferences(rt, idx, c.Meta.Path, attrs, locate); len(violations) > 0 {
				return errors.Join(violations...)
			}
		}
	}

	data, err := frontmatter.Serialize(attrs, order, c.Body)
	if err != nil {
		return err
	}
	return s.store.Write(c.Meta.Path, data)
}

// locator builds a stem-to-path resolver over the whole store for wikilink
// targets. First match in path order wins.
func (s *Service) locator() (ownership.Locator, error) {
	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })
	byStem := make(map[string]string, len(metas))
	for _, m := range metas {
		stem := m.Stem()
		if _, dup := byStem[stem]; !dup {
			byStem[stem] = m.Path
		}
		// Path-qualified targets like [[folder/name]] also resolve.
		trimmed := trimExt(m.Path)
		if _, dup := byStem[trimmed]; !dup {
			byStem[trimmed] = m.Path
		}
	}
	return func(name string) (string, bool) {
		p, ok := byStem[name]
		return p, ok
	}, nil
}

func titleOf(c target.Candidate) string {
	return titleFromAttrs(c.Attrs, c.Meta.Path)
}

func titleFromAttrs(attrs map[string]any, path string) string {
	if attrs != nil {
		if t, ok := attrs["title"].(string); ok && t != "" {
			return t
		}
	}
	return trimExt(pathBase(path))
}

func pathBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

func trimExt(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '.' {
			return p[:i]
		}
		if p[i] == '/' {
			break
		}
	}
	return p
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
