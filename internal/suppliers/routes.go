package suppliers

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the supplier endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/ingest", h.Ingest)
	r.Post("/reindex", h.Reindex)
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
	r.Delete("/{id}", h.Delete)
}
