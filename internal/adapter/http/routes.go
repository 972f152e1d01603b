package http

import "github.com/go-chi/chi/v5"

// MountRoutes registers the A2A routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Get("/.well-known/agent-card.json", h.AgentCard)
	r.Get("/.well-known/agent.json", h.AgentCard) // pre-0.3 card location

	r.Post("/a2a", h.JSONRPC)

	r.Post("/a2a/tasks", h.SendTask)
	r.Get("/a2a/tasks/{id}", h.GetTask)
	r.Post("/a2a/tasks/{id}/cancel", h.CancelTask)
	r.Post("/a2a/tasks/{id}/input-failure", h.ReportInputFailure)
}
