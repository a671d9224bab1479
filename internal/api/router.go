package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Records.
	r.Get("/records", h.ListRecords)
	r.Post("/records/edit", h.BulkEdit)
	r.Post("/records/delete", h.BulkDelete)
	r.Get("/records/*", h.GetRecord)

	// Search and backlinks.
	r.Get("/search", h.Search)
	r.Get("/backlinks/*", h.Backlinks)

	// Schema.
	r.Get("/types", h.ListTypes)
	r.Get("/types/*", h.GetType)
	r.Get("/drift", h.Drift)

	// Validation.
	r.Post("/check", h.Check)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
