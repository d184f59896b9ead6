package routers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JGenereux/ai-interviewer/internal/handlers"

	"github.com/go-chi/chi/v5"
)

func TestHealthRoutes(t *testing.T) {
	router := chi.NewRouter()
	HealthRoutes(router, handlers.NewHealthHandler(nil))

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s not registered correctly, got status %d", path, rec.Code)
		}
	}
}

func TestNewRegistersInterviewRoutes(t *testing.T) {
	router := New(Handlers{
		Interview: handlers.NewInterviewHandler(nil, handlers.InterviewDeps{}, nil),
	}, Options{JWTSecret: "secret"})

	routes := map[string]bool{}
	err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes[method+" "+route] = true
		return nil
	})
	if err != nil {
		t.Fatalf("walk routes: %v", err)
	}

	for _, want := range []string{
		"GET /api/v1/interviews/",
		"POST /api/v1/interviews/",
		"GET /api/v1/interviews/{id}",
		"PUT /api/v1/interviews/{id}",
		"POST /api/v1/interviews/{id}/end",
		"POST /api/v1/interviews/{id}/run",
		"POST /api/v1/interviews/{id}/hint",
		"POST /api/v1/interviews/{id}/whiteboard",
		"POST /api/v1/interviews/{id}/question",
		"POST /api/v1/interviews/{id}/feedback",
		"GET /api/v1/interviews/{id}/session",
		"GET /metrics",
	} {
		if !routes[want] {
			t.Fatalf("expected route %q to be registered, have %v", want, routes)
		}
	}
}

func TestInterviewRoutesRequireAuth(t *testing.T) {
	router := New(Handlers{
		Interview: handlers.NewInterviewHandler(nil, handlers.InterviewDeps{}, nil),
		Internal:  handlers.NewInternalHandler(nil, nil),
	}, Options{JWTSecret: "secret", InternalKey: "k"})

	cases := map[string]int{
		"/api/v1/interviews":           http.StatusUnauthorized,
		"/api/v1/interviews/x/end":     http.StatusUnauthorized,
		"/api/v1/interviews/x/session": http.StatusUnauthorized,
		"/internal/sweep":              http.StatusForbidden,
	}
	for path, status := range cases {
		method := http.MethodPost
		if path == "/api/v1/interviews/x/session" {
			method = http.MethodGet
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		if rec.Code != status {
			t.Fatalf("%s %s: expected %d, got %d", method, path, status, rec.Code)
		}
	}
}
