package ui

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the UI routes on r, which is expected to be
// mounted at the configured base path.
func (ui *UI) RegisterRoutes(r chi.Router) {
	r.Get("/", ui.HandleDashboard)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", ui.HandleRunList)
		r.Get("/{id}", ui.HandleRunDetail)
	})
}
