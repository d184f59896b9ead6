package handlers

import (
	"context"
	"net/http"

	"github.com/JGenereux/ai-interviewer/internal/lifecycle"
	"github.com/JGenereux/ai-interviewer/internal/utils"

	"go.uber.org/zap"
)

type Sweeper interface {
	SweepAbandoned(ctx context.Context) (*lifecycle.SweepResult, error)
}

// InternalHandler exposes operational endpoints to trusted callers only.
type InternalHandler struct {
	sweeper Sweeper
	logger  *zap.Logger
}

func NewInternalHandler(sweeper Sweeper, logger *zap.Logger) *InternalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InternalHandler{sweeper: sweeper, logger: logger}
}

func (h *InternalHandler) SweepHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.SweepAbandoned(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("manual sweep finished",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	utils.JSON(w, http.StatusOK, res)
}
