package routers

import (
	"github.com/JGenereux/ai-interviewer/internal/handlers"
	"github.com/JGenereux/ai-interviewer/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Options struct {
	JWTSecret      string
	InternalKey    string
	AllowedOrigins []string
	MaxBodyBytes   int64
	Logger         *zap.Logger
}

type Handlers struct {
	Interview *handlers.InterviewHandler
	User      *handlers.UserHandler
	Health    *handlers.HealthHandler
	Internal  *handlers.InternalHandler
}

// New builds the service router with the shared middleware stack and every route group
// whose handler is set.
func New(h Handlers, opts Options) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Internal-Key"},
		AllowCredentials: true,
	}))
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	router.Use(metrics.Middleware("interviewer"))

	router.Handle("/metrics", metrics.Handler())
	if h.Health != nil {
		HealthRoutes(router, h.Health)
	}
	if h.Interview != nil {
		InterviewRoutes(router, h.Interview, opts)
	}
	if h.User != nil {
		UserRoutes(router, h.User, opts)
	}
	if h.Internal != nil {
		InternalRoutes(router, h.Internal, opts)
	}
	return router
}
