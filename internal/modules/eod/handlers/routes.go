package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all batch routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/eod", func(r chi.Router) {
		r.Post("/batches", h.HandleProcessBatch)
		r.Get("/runs", h.HandleListRuns)
	})
}
