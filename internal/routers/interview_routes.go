package routers

import (
	"time"

	"github.com/JGenereux/ai-interviewer/internal/handlers"
	"github.com/JGenereux/ai-interviewer/internal/middleware"
	"github.com/JGenereux/ai-interviewer/internal/models"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 60 * time.Second

// InterviewRoutes mounts the interview API. The websocket session route is kept out of the
// request timeout group since it lives as long as the interview.
func InterviewRoutes(router chi.Router, h *handlers.InterviewHandler, opts Options) {
	router.Route("/api/v1/interviews", func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.JWTSecret, opts.Logger))

		r.Get("/{id}/session", h.SessionHandler)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout), middleware.LimitBody(opts.MaxBodyBytes))

			r.Get("/", h.ListHandler)
			r.With(middleware.ValidateRequest[*models.StartInterviewRequest]()).Post("/", h.StartHandler)

			r.Get("/{id}", h.GetHandler)
			r.With(middleware.ValidateRequest[*models.SaveInterviewRequest]()).Put("/{id}", h.SaveHandler)
			r.Post("/{id}/end", h.EndHandler)
			r.Post("/{id}/question", h.QuestionHandler)
			r.With(middleware.ValidateRequest[*models.RunCodeRequest]()).Post("/{id}/run", h.RunHandler)
			r.With(middleware.ValidateRequest[*models.HintRequest]()).Post("/{id}/hint", h.HintHandler)
			r.With(middleware.ValidateRequest[*models.WhiteboardRequest]()).Post("/{id}/whiteboard", h.WhiteboardHandler)
			r.Post("/{id}/feedback", h.FeedbackHandler)
		})
	})
}
