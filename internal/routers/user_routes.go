package routers

import (
	"github.com/JGenereux/ai-interviewer/internal/handlers"
	"github.com/JGenereux/ai-interviewer/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func UserRoutes(router chi.Router, h *handlers.UserHandler, opts Options) {
	router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.With(middleware.Authenticate(opts.JWTSecret, opts.Logger)).Get("/api/v1/me", h.MeHandler)
		r.Get("/api/v1/leaderboard", h.LeaderboardHandler)
	})
}

func InternalRoutes(router chi.Router, h *handlers.InternalHandler, opts Options) {
	router.With(chimw.Timeout(requestTimeout), middleware.RequireInternalKey(opts.InternalKey)).
		Post("/internal/sweep", h.SweepHandler)
}
