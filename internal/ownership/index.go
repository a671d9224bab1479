// Package ownership discovers and enforces exclusive-custody relationships
// between record types. Ownership is inferred from directory adjacency, not
// stored back-references, so the index can never diverge from the actual
// file layout. It is rebuilt in full at the start of every operation.
package ownership

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
)

// Info is one discovered ownership entry.
type Info struct {
	OwnedPath string `json:"owned_path"`
	OwnerPath string `json:"owner_path"`
	OwnerType string `json:"owner_type"`
	Field     string `json:"field"`
}

// Index maps owned record paths to their single owner. A pooled record
// never appears as a key.
type Index struct {
	owned   map[string]Info
	byOwner map[string][]Info
}

// ChildDir returns the vault-relative directory that holds records owned by
// the given owner record through field. This is the single place the
// layout convention lives: a flat record drafts/D.md owns children under
// drafts/D/<field>/, a grouped record drafts/D/D.md under the same
// drafts/D/<field>/.
func ChildDir(ownerRecordPath, field string) string {
	dir := path.Dir(ownerRecordPath)
	stem := strings.TrimSuffix(path.Base(ownerRecordPath), ".md")
	if path.Base(dir) == stem {
		// Grouped layout: the record already sits inside its own folder.
		return path.Join(dir, field)
	}
	return path.Join(dir, stem, field)
}

// BuildIndex scans the output location of every owner type and indexes each
// record found in an owning field's child directory. Full rebuild per call;
// there is no incremental mode.
func BuildIndex(s *schema.Schema, store storage.Provider) (*Index, error) {
	idx := &Index{
		owned:   make(map[string]Info),
		byOwner: make(map[string][]Info),
	}

	for _, typeName := range s.OwnerTypes() {
		rt, err := s.Resolve(typeName)
		if err != nil {
			return nil, err
		}
		owners, err := ownerRecords(store, rt)
		if err != nil {
			return nil, err
		}
		for _, ownerPath := range owners {
			for _, field := range sortedOwnFields(rt) {
				childDir := ChildDir(ownerPath, field)
				kids, err := store.List(childDir)
				if err != nil {
					return nil, fmt.Errorf("ownership: scan %s: %w", childDir, err)
				}
				for _, kid := range kids {
					idx.add(Info{
						OwnedPath: kid.Path,
						OwnerPath: ownerPath,
						OwnerType: typeName,
						Field:     field,
					})
				}
			}
		}
	}
	return idx, nil
}

// ownerRecords lists the records of an owner type at its output location:
// flat .md files for pooled layout, or grouped-folder instances whose
// principal file shares the folder's name.
func ownerRecords(store storage.Provider, rt *schema.ResolvedType) ([]string, error) {
	entries, err := store.ListShallow(rt.Location)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		switch {
		case !e.IsDir && strings.HasSuffix(e.Name, ".md"):
			out = append(out, path.Join(rt.Location, e.Name))
		case e.IsDir:
			principal := path.Join(rt.Location, e.Name, e.Name+".md")
			if store.Exists(principal) {
				out = append(out, principal)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func sortedOwnFields(rt *schema.ResolvedType) []string {
	out := make([]string, 0, len(rt.Owns))
	for field := range rt.Owns {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

func (idx *Index) add(info Info) {
	if _, dup := idx.owned[info.OwnedPath]; dup {
		// First discovery wins; the layout already violates exclusivity and
		// validation will surface it against the recorded owner.
		return
	}
	idx.owned[info.OwnedPath] = info
	idx.byOwner[info.OwnerPath] = append(idx.byOwner[info.OwnerPath], info)
}

// IsOwned returns the ownership entry for a record path, if any.
func (idx *Index) IsOwned(recordPath string) (Info, bool) {
	info, ok := idx.owned[recordPath]
	return info, ok
}

// OwnedBy returns every record owned by ownerPath, path-sorted.
func (idx *Index) OwnedBy(ownerPath string) []Info {
	out := append([]Info(nil), idx.byOwner[ownerPath]...)
	sort.Slice(out, func(i, j int) bool { return out[i].OwnedPath < out[j].OwnedPath })
	return out
}

// CanReference reports whether fromPath may reference toPath. A pooled
// target is always referenceable; an owned target only by its recorded
// owner.
func (idx *Index) CanReference(fromPath, toPath string) error {
	info, ok := idx.owned[toPath]
	if !ok {
		return nil
	}
	if info.OwnerPath == fromPath {
		return nil
	}
	return &apperr.OwnershipViolation{
		Kind:  apperr.ViolationReferencingOwned,
		Path:  toPath,
		Owner: info.OwnerPath,
		Field: info.Field,
	}
}

// ValidateNewOwnership rejects claiming a record that is already owned by a
// different owner. Re-declaring the same owner is idempotent and accepted.
func (idx *Index) ValidateNewOwnership(candidatePath, intendedOwnerPath string) error {
	info, ok := idx.owned[candidatePath]
	if !ok || info.OwnerPath == intendedOwnerPath {
		return nil
	}
	return &apperr.OwnershipViolation{
		Kind:  apperr.ViolationAlreadyOwned,
		Path:  candidatePath,
		Owner: info.OwnerPath,
		Field: info.Field,
	}
}

// Locator resolves a wikilink target name to a record path.
type Locator func(name string) (string, bool)

// ValidateReferences checks every link-format attribute on a record against
// the index, aggregating all violations rather than stopping at the first.
// Targets that do not resolve to a known record are skipped: a dangling
// link is not an ownership violation.
func ValidateReferences(rt *schema.ResolvedType, idx *Index, recordPath string, attrs map[string]any, locate Locator) []error {
	var out []error
	for _, name := range rt.Order {
		if !rt.IsLinkField(name) {
			continue
		}
		value, ok := attrs[name]
		if !ok {
			continue
		}
		for _, target := range frontmatter.LinkTargets(value) {
			targetPath, ok := locate(target)
			if !ok {
				continue
			}
			if err := idx.CanReference(recordPath, targetPath); err != nil {
				out = append(out, err)
			}
		}
	}
	return out
}
