package handlers

import (
	"errors"
	"net/http"

	"github.com/JGenereux/ai-interviewer/internal/feedback"
	"github.com/JGenereux/ai-interviewer/internal/lifecycle"
	"github.com/JGenereux/ai-interviewer/internal/llm"
	"github.com/JGenereux/ai-interviewer/internal/models"
	"github.com/JGenereux/ai-interviewer/internal/questions"
	"github.com/JGenereux/ai-interviewer/internal/repositories"
	"github.com/JGenereux/ai-interviewer/internal/tools"
	"github.com/JGenereux/ai-interviewer/internal/utils"

	"go.uber.org/zap"
)

var kindStatus = map[lifecycle.Kind]int{
	lifecycle.KindValidation:         http.StatusBadRequest,
	lifecycle.KindForbidden:          http.StatusForbidden,
	lifecycle.KindNotFound:           http.StatusNotFound,
	lifecycle.KindInsufficientTokens: http.StatusPaymentRequired,
	lifecycle.KindConflict:           http.StatusConflict,
	lifecycle.KindUnavailable:        http.StatusServiceUnavailable,
}

// classify maps a domain error onto a status and a stable client-facing code.
func classify(err error) (int, models.ErrorResponse) {
	var le *lifecycle.Error
	if errors.As(err, &le) {
		msg := le.Message
		if msg == "" {
			msg = string(le.Kind)
		}
		status, ok := kindStatus[le.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		return status, models.ErrorResponse{Code: string(le.Kind), Message: msg}
	}

	switch {
	case errors.Is(err, feedback.ErrInvalidFeedback):
		return http.StatusUnprocessableEntity, models.ErrorResponse{Code: "invalid_feedback", Message: "the evaluation did not match the interview mode"}
	case errors.Is(err, feedback.ErrFeedbackGenerationFailed):
		return http.StatusBadGateway, models.ErrorResponse{Code: "feedback_failed", Message: "feedback could not be generated"}
	case errors.Is(err, tools.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, models.ErrorResponse{Code: "image_too_large", Message: "whiteboard image is too large to analyse"}
	case errors.Is(err, tools.ErrNoImage):
		return http.StatusBadRequest, models.ErrorResponse{Code: "missing_image", Message: "image is required"}
	case errors.Is(err, tools.ErrInvalidHint):
		return http.StatusBadGateway, models.ErrorResponse{Code: "hint_failed", Message: "hint could not be generated"}
	case errors.Is(err, questions.ErrPoolEmpty):
		return http.StatusServiceUnavailable, models.ErrorResponse{Code: "no_questions", Message: "no questions are available"}
	case errors.Is(err, questions.ErrQuestionNotFound):
		return http.StatusNotFound, models.ErrorResponse{Code: "not_found", Message: "question not found"}
	case errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound, models.ErrorResponse{Code: "not_found", Message: "not found"}
	case errors.Is(err, repositories.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, models.ErrorResponse{Code: "unavailable", Message: "store unavailable"}
	}

	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return http.StatusBadGateway, models.ErrorResponse{Code: "ai_error", Message: "the model provider failed"}
	}
	return http.StatusInternalServerError, models.ErrorResponse{Code: "internal_error", Message: "internal server error"}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error, fields ...zap.Field) {
	status, resp := classify(err)
	fields = append(fields, zap.Int("status", status), zap.Error(err))
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Info("request rejected", fields...)
	}
	utils.JSON(w, status, resp)
}

func unavailable(w http.ResponseWriter, what string) {
	utils.JSON(w, http.StatusServiceUnavailable, models.ErrorResponse{
		Code:    "unavailable",
		Message: what + " is not configured",
	})
}
