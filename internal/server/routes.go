package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Thread inspection
	r.Route("/thread", func(r chi.Router) {
		r.Get("/", s.getThread)
		r.Get("/state", s.getState)
		r.Get("/message", s.getMessages)
		r.Get("/message/{messageID}", s.getMessage)
		r.Get("/plan", s.getPlan)
		r.Get("/plan/markdown", s.getPlanMarkdown)
		r.Get("/mode", s.getModes)
		r.Get("/config-option", s.getConfigOptions)
		r.Get("/command", s.listCommands)

		// Thread operations
		r.Post("/prompt", s.sendPrompt)
		r.Post("/cancel", s.cancelTurn)
		r.Post("/mode", s.setMode)
		r.Post("/mode/cycle", s.cycleMode)
		r.Post("/config-option", s.setConfigOption)

		// Permissions
		r.Get("/permissions", s.listPermissions)
		r.Post("/permissions/{permissionID}", s.respondPermission)
	})

	// File change tracking
	r.Route("/changes", func(r chi.Router) {
		r.Get("/", s.listChanges)
		r.Get("/diff", s.getDiff)
	})

	// Event streaming (SSE)
	r.Get("/event", s.threadEvents)
}
