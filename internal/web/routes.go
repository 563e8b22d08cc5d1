package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/auth-gate/internal/auth"
	"github.com/kozaktomas/auth-gate/internal/web/handlers"
	"github.com/kozaktomas/auth-gate/internal/web/middleware"
)

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager) {
	// Create handlers
	pinHandler := handlers.NewPINHandler(s.pin, sessionManager)
	faceHandler := handlers.NewFaceHandler(s.face, sessionManager, s.config.Web.MaxImageBytes)
	voiceHandler := handlers.NewVoiceHandler(s.voice, sessionManager, s.config.Web.MaxImageBytes)
	authenticateHandler := handlers.NewAuthenticateHandler(
		auth.NewOrchestrator(s.pin, s.face, s.voice),
		s.config.Web.MaxImageBytes,
		s.config.Web.MaxImageBytes,
	)

	// Health check (no session required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Chain entry points: the PIN stage and the one-shot full chain.
		r.Post("/validate-pin", pinHandler.Verify)
		r.Post("/authenticate", authenticateHandler.Run)

		// Later stages are gated on stage-progress; the face endpoint is
		// unreachable without a passed PIN, voice without a passed face.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePIN(sessionManager))
			r.Post("/face-auth", faceHandler.Verify)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireFace(sessionManager))
			r.Post("/voice-auth", voiceHandler.Verify)
		})
	})
}
