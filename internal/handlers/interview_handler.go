package handlers

import (
	"net/http"
	"strconv"

	"github.com/JGenereux/ai-interviewer/internal/lifecycle"
	"github.com/JGenereux/ai-interviewer/internal/middleware"
	"github.com/JGenereux/ai-interviewer/internal/models"
	"github.com/JGenereux/ai-interviewer/internal/realtime"
	"github.com/JGenereux/ai-interviewer/internal/tools"
	"github.com/JGenereux/ai-interviewer/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// InterviewHandler serves the interview lifecycle and the in-interview workbench.
// Optional collaborators left nil answer 503.
type InterviewHandler struct {
	manager   *lifecycle.Manager
	questions *tools.GetQuestion
	hinter    *tools.Hinter
	vision    *tools.Vision
	feedback  *tools.FeedbackService
	bridge    *realtime.Bridge
	logger    *zap.Logger
}

type InterviewDeps struct {
	Questions *tools.GetQuestion
	Hinter    *tools.Hinter
	Vision    *tools.Vision
	Feedback  *tools.FeedbackService
	Bridge    *realtime.Bridge
}

func NewInterviewHandler(manager *lifecycle.Manager, deps InterviewDeps, logger *zap.Logger) *InterviewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterviewHandler{
		manager:   manager,
		questions: deps.Questions,
		hinter:    deps.Hinter,
		vision:    deps.Vision,
		feedback:  deps.Feedback,
		bridge:    deps.Bridge,
		logger:    logger,
	}
}

func (h *InterviewHandler) fields(r *http.Request) []zap.Field {
	return []zap.Field{
		zap.String("user_id", middleware.UserID(r)),
		zap.String("interview_id", chi.URLParam(r, "id")),
	}
}

func (h *InterviewHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.StartInterviewRequest](r)
	res, err := h.manager.Start(r.Context(), middleware.UserID(r), models.Mode(req.Mode))
	if err != nil {
		writeError(w, h.logger, err, zap.String("user_id", middleware.UserID(r)))
		return
	}
	utils.JSON(w, http.StatusCreated, res)
}

func (h *InterviewHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{Code: "invalid_limit", Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}
	list, err := h.manager.List(r.Context(), middleware.UserID(r), limit)
	if err != nil {
		writeError(w, h.logger, err, zap.String("user_id", middleware.UserID(r)))
		return
	}
	if list == nil {
		list = []models.Interview{}
	}
	utils.JSON(w, http.StatusOK, list)
}

func (h *InterviewHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	iv, err := h.manager.Get(r.Context(), middleware.UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	utils.JSON(w, http.StatusOK, iv)
}

// SaveHandler persists transcript, code and optional feedback. Saving finalizes billing.
func (h *InterviewHandler) SaveHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.SaveInterviewRequest](r)
	res, err := h.manager.Save(r.Context(), middleware.UserID(r), chi.URLParam(r, "id"), lifecycle.SaveInput{
		Messages:        req.Messages,
		Code:            req.Code,
		Language:        req.Language,
		Feedback:        req.Feedback,
		ProblemAttempts: req.ProblemAttempts,
	})
	if err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *InterviewHandler) EndHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.End(r.Context(), middleware.UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *InterviewHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.RunCodeRequest](r)
	res, err := h.manager.RunCode(r.Context(), middleware.UserID(r), chi.URLParam(r, "id"), *req)
	if err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

// QuestionHandler presents a question outside the realtime session and opens an attempt for it.
func (h *InterviewHandler) QuestionHandler(w http.ResponseWriter, r *http.Request) {
	if h.questions == nil {
		unavailable(w, "question service")
		return
	}
	difficulty, _ := models.ParseDifficulty(r.URL.Query().Get("difficulty"))
	language := utils.NormalizeLanguage(r.URL.Query().Get("language"))
	res, err := h.questions.Fetch(r.Context(), middleware.UserID(r), chi.URLParam(r, "id"), difficulty, language)
	if err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *InterviewHandler) HintHandler(w http.ResponseWriter, r *http.Request) {
	if h.hinter == nil {
		unavailable(w, "hint provider")
		return
	}
	req := middleware.GetValidatedRequest[*models.HintRequest](r)
	if _, err := h.manager.Get(r.Context(), middleware.UserID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	hint, err := h.hinter.Hint(r.Context(), req.Code, req.ProblemDescription)
	if err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	utils.JSON(w, http.StatusOK, hint)
}

func (h *InterviewHandler) WhiteboardHandler(w http.ResponseWriter, r *http.Request) {
	if h.vision == nil {
		unavailable(w, "vision provider")
		return
	}
	req := middleware.GetValidatedRequest[*models.WhiteboardRequest](r)
	if _, err := h.manager.Get(r.Context(), middleware.UserID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	text, err := h.vision.Interpret(r.Context(), req.Bytes(), req.MimeType)
	if err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	utils.JSON(w, http.StatusOK, models.WhiteboardResponse{Interpretation: text})
}

// FeedbackHandler synthesizes and stores feedback for the interview. It does not settle billing.
func (h *InterviewHandler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	if h.feedback == nil {
		unavailable(w, "feedback synthesis")
		return
	}
	fb, err := h.feedback.Generate(r.Context(), middleware.UserID(r), chi.URLParam(r, "id"), tools.LiveWork{})
	if err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	utils.JSON(w, http.StatusOK, fb)
}

// SessionHandler upgrades to the realtime bridge for an active interview.
func (h *InterviewHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if h.bridge == nil {
		unavailable(w, "realtime session")
		return
	}
	iv, err := h.manager.Get(r.Context(), middleware.UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err, h.fields(r)...)
		return
	}
	if iv.Status.Terminal() {
		utils.JSON(w, http.StatusConflict, models.ErrorResponse{Code: "conflict", Message: "interview has already ended"})
		return
	}
	h.bridge.Serve(w, r, iv)
}
