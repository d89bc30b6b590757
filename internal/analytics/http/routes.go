package analytichttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/feeding", h.handleFeeding)
		r.Get("/feeding.csv", h.handleFeedingCSV)
		r.Get("/incubation", h.handleIncubation)
		r.Get("/incubation.csv", h.handleIncubationCSV)
		r.Get("/dashboard", h.handleDashboard)
	})
}
