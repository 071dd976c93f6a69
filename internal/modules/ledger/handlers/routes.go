package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Get("/executions", h.HandleGetExecutions)
		r.Get("/realized-trades", h.HandleGetRealizedTrades)

		// Day-scoped aggregates
		r.Get("/daily-equity", h.HandleGetDailyEquity)
		r.Get("/daily-summary", h.HandleGetDailySummary)
	})
}
