package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/recordservice"
	"github.com/starford/ansuz/internal/schema"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/target"
)

// Handler holds API route handlers.
type Handler struct {
	svc        *recordservice.Service
	db         *index.DB
	schema     *schema.Schema
	schemaData []byte
	store      storage.Provider
}

// NewHandler creates a new Handler.
func NewHandler(svc *recordservice.Service, db *index.DB, s *schema.Schema, schemaData []byte, store storage.Provider) *Handler {
	return &Handler{svc: svc, db: db, schema: s, schemaData: schemaData, store: store}
}

// recordPath extracts the record path from the URL (everything after the
// route prefix). Supports encoded slashes from generated clients.
func recordPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// selectorFromQuery maps list query parameters onto a Selector. Mutating
// gates are not reachable through GET.
func selectorFromQuery(q url.Values) target.Selector {
	return target.Selector{
		TypePath: q.Get("type"),
		PathGlob: q.Get("path"),
		Where:    q["where"],
		ID:       q.Get("id"),
		Body:     q.Get("body"),
		All:      q.Get("all") == "true",
	}
}

// ListRecords handles GET /records. With a limit parameter the listing is
// served straight from the record index, paginated; otherwise the full
// selector is resolved against the store.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("limit") {
		h.listIndexed(w, q)
		return
	}
	sel := selectorFromQuery(q)

	items, res, err := h.svc.List(r.Context(), sel)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{
		Records:    items,
		Total:      len(items),
		NearMisses: res.NearMisses,
		Skipped:    res.Skipped,
	})
}

// listIndexed serves a paginated listing from the index. The selection gate
// applies as everywhere else: a type or all=true is required.
func (h *Handler) listIndexed(w http.ResponseWriter, q url.Values) {
	typePath := q.Get("type")
	if typePath == "" && q.Get("all") != "true" {
		writeJSON(w, http.StatusBadRequest, errorBody("type or all=true is required"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.db.ListRecords(limit, offset, typePath)
	if err != nil {
		slog.Error("indexed list failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	out := make([]IndexedRecord, len(rows))
	for i, row := range rows {
		out[i] = IndexedRecord{
			Path:      row.Path,
			Type:      row.TypePath,
			Title:     row.Title,
			UpdatedAt: row.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, IndexedListResponse{
		Records: out,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// Backlinks handles GET /backlinks/*. The target is a link name exactly as
// written between brackets, typically a record stem.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	targetName := recordPath(r)
	if targetName == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("target is required"))
		return
	}
	sources, err := h.db.Referencing(targetName)
	if err != nil {
		slog.Error("backlinks failed", slog.String("target", targetName), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Target: targetName, Sources: sources})
}

// GetRecord handles GET /records/*.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	path := recordPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	detail, err := h.svc.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get record failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// BulkEdit handles POST /records/edit.
func (h *Handler) BulkEdit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req BulkEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	report, err := h.svc.BulkEdit(r.Context(), req.Selector, req.Changes)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// BulkDelete handles POST /records/delete.
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	report, err := h.svc.BulkDelete(r.Context(), req.Selector)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Check handles POST /check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	report, err := h.svc.Check(r.Context(), req.Selector)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Search handles GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	hits, err := h.db.Search(query, 20)
	if err != nil {
		slog.Error("search failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	out := make([]SearchResult, len(hits))
	for i, hit := range hits {
		out[i] = SearchResult{Path: hit.Path, Title: hit.Title, Snippet: hit.Snippet}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}

// ListTypes handles GET /types.
func (h *Handler) ListTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TypeListResponse{Types: h.schema.ConcreteTypePaths()})
}

// GetType handles GET /types/*.
func (h *Handler) GetType(w http.ResponseWriter, r *http.Request) {
	typePath := recordPath(r)
	if typePath == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("type path is required"))
		return
	}
	rt, err := h.schema.Resolve(typePath)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// Drift handles GET /drift.
func (h *Handler) Drift(w http.ResponseWriter, _ *http.Request) {
	drift, err := schema.DetectDrift(h.store, h.schemaData)
	if err != nil {
		slog.Error("drift check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, drift)
}

// writeResolveError maps targeting, validation, and ownership failures to
// 400s with their message; anything else is a 500.
func writeResolveError(w http.ResponseWriter, err error) {
	var te *apperr.TargetingError
	var we *apperr.WhereValidationError
	var se *apperr.SchemaResolutionError
	switch {
	case errors.As(err, &te), errors.As(err, &we), errors.As(err, &se),
		errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error("operation failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
