package api

import (
	"time"

	"github.com/starford/ansuz/internal/recordservice"
	"github.com/starford/ansuz/internal/target"
)

// RecordListResponse wraps a resolved record listing.
type RecordListResponse struct {
	Records    []recordservice.ListItem `json:"records"`
	Total      int                      `json:"total"`
	NearMisses []string                 `json:"near_misses,omitempty"`
	Skipped    []string                 `json:"skipped,omitempty"`
}

// IndexedRecord is one row of an index-backed paginated listing.
type IndexedRecord struct {
	Path      string    `json:"path"`
	Type      string    `json:"type,omitempty"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IndexedListResponse wraps a paginated listing served from the index.
type IndexedListResponse struct {
	Records []IndexedRecord `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// BacklinksResponse lists the records whose frontmatter or body link to a
// target name.
type BacklinksResponse struct {
	Target  string   `json:"target"`
	Sources []string `json:"sources"`
}

// BulkEditRequest carries a selector and a change set. The two gates apply
// exactly as on the CLI: the selector must be explicit (or all=true) and
// execute=true is required to write.
type BulkEditRequest struct {
	Selector target.Selector         `json:"selector"`
	Changes  recordservice.ChangeSet `json:"changes"`
}

// BulkDeleteRequest carries a selector for a bulk delete.
type BulkDeleteRequest struct {
	Selector target.Selector `json:"selector"`
}

// CheckRequest carries a selector for reference validation.
type CheckRequest struct {
	Selector target.Selector `json:"selector"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// TypeListResponse lists every resolvable type path.
type TypeListResponse struct {
	Types []string `json:"types"`
}
