package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/utils"

	"golang.org/x/sync/errgroup"
)

type ReadinessCheck struct {
	Status  string `json:"status"` // "ok" | "failed"
	Message string `json:"message,omitempty"`
}

type ReadinessResponse struct {
	Status  string                    `json:"status"` // "ready" | "not_ready"
	Service string                    `json:"service"`
	Checks  map[string]ReadinessCheck `json:"checks"`
}

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 3 * time.Second}
}

func (handler *HealthHandler) HealthzHandler(writer http.ResponseWriter, request *http.Request) {
	utils.JSON(writer, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "interviewer",
		"version": "1.0.0",
	})
}

// ReadyzHandler runs every check concurrently and reports each result.
func (handler *HealthHandler) ReadyzHandler(writer http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), handler.timeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]ReadinessCheck, len(handler.checks))
	allChecksPass := true

	var g errgroup.Group
	for name, check := range handler.checks {
		g.Go(func() error {
			res := ReadinessCheck{Status: "ok"}
			if check == nil {
				res = ReadinessCheck{Status: "failed", Message: "not initialized"}
			} else if err := check(ctx); err != nil {
				res = ReadinessCheck{Status: "failed", Message: err.Error()}
			}
			mu.Lock()
			results[name] = res
			if res.Status != "ok" {
				allChecksPass = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	response := ReadinessResponse{Service: "interviewer", Checks: results}
	if allChecksPass {
		response.Status = "ready"
		utils.JSON(writer, http.StatusOK, response)
	} else {
		response.Status = "not_ready"
		utils.JSON(writer, http.StatusServiceUnavailable, response)
	}
}
