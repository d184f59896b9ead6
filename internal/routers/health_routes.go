package routers

import (
	"github.com/JGenereux/ai-interviewer/internal/handlers"

	"github.com/go-chi/chi/v5"
)

func HealthRoutes(router chi.Router, healthHandler *handlers.HealthHandler) {
	router.Get("/healthz", healthHandler.HealthzHandler)
	router.Get("/readyz", healthHandler.ReadyzHandler)
}
