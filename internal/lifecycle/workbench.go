package lifecycle

import (
	"context"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/execution"
	"github.com/JGenereux/ai-interviewer/internal/models"
	"github.com/JGenereux/ai-interviewer/internal/repositories"

	"go.uber.org/zap"
)

// CodeRunner executes candidate code.
type CodeRunner interface {
	Run(ctx context.Context, language, version, source string) (execution.Result, error)
}

// RecordMessages appends live transcript entries. Billing is left untouched; entries already
// stored under the same message id are skipped.
func (m *Manager) RecordMessages(ctx context.Context, userID, interviewID string, messages []models.Message) (int64, error) {
	const op = "record messages"
	if _, err := m.owned(ctx, op, userID, interviewID); err != nil {
		return 0, err
	}
	stored, err := m.store.AppendMessages(ctx, interviewID, messages)
	if err != nil {
		return 0, fromStore(op, "interview", err)
	}
	return stored, nil
}

// RecordQuestion opens a problem attempt for a question presented during the interview.
func (m *Manager) RecordQuestion(ctx context.Context, userID, interviewID, questionID, language string) (*models.ProblemAttempt, error) {
	const op = "record question"
	interview, err := m.owned(ctx, op, userID, interviewID)
	if err != nil {
		return nil, err
	}
	if interview.Status.Terminal() {
		return nil, newError(KindConflict, op, "interview has already ended", nil)
	}

	attempt := models.ProblemAttempt{
		ID:          m.newID(),
		InterviewID: interviewID,
		QuestionID:  questionID,
		StartedAt:   m.now(),
		Language:    language,
	}
	if err := m.store.UpsertProblemAttempts(ctx, interviewID, []models.ProblemAttempt{attempt}); err != nil {
		return nil, fromStore(op, "interview", err)
	}
	if err := m.store.UpdateInterview(ctx, interviewID, repositories.InterviewPatch{AddAttemptIDs: []string{attempt.ID}}); err != nil {
		return nil, fromStore(op, "interview", err)
	}
	return &attempt, nil
}

// RunCode executes the candidate's code, stores it as the current buffer and appends the
// run to the latest problem attempt. Execution failures come back as a failing result.
func (m *Manager) RunCode(ctx context.Context, userID, interviewID string, req models.RunCodeRequest) (*models.RunCodeResponse, error) {
	const op = "run code"
	interview, err := m.owned(ctx, op, userID, interviewID)
	if err != nil {
		return nil, err
	}
	if interview.Status.Terminal() {
		return nil, newError(KindConflict, op, "interview has already ended", nil)
	}
	if m.runner == nil {
		return nil, newError(KindUnavailable, op, "code execution is not configured", nil)
	}

	result, err := m.runner.Run(ctx, req.Language, req.Version, req.Code)
	if err != nil {
		m.logger.Warn("code execution failed",
			zap.String("interview_id", interviewID),
			zap.String("language", req.Language),
			zap.Error(err),
		)
		result = execution.Failed(err)
	}

	code, lang := req.Code, req.Language
	if err := m.store.UpdateInterview(ctx, interviewID, repositories.InterviewPatch{Code: &code, Language: &lang}); err != nil {
		return nil, fromStore(op, "interview", err)
	}

	resp := &models.RunCodeResponse{Stdout: result.Stdout, Stderr: result.Stderr, Passed: result.Passed()}
	if n := len(interview.ProblemAttemptIDs); n > 0 {
		attemptID := interview.ProblemAttemptIDs[n-1]
		sub := models.Submission{SubmittedAt: m.now().UTC().Truncate(time.Millisecond), UserCode: req.Code, Stdout: result.Stdout, Stderr: result.Stderr}
		if _, err := m.store.AppendSubmission(ctx, attemptID, sub); err != nil {
			return nil, fromStore(op, "problem attempt", err)
		}
		resp.AttemptID = attemptID
	}
	return resp, nil
}

// CurrentCode returns the last saved editor buffer.
func (m *Manager) CurrentCode(ctx context.Context, userID, interviewID string) (string, error) {
	interview, err := m.owned(ctx, "current code", userID, interviewID)
	if err != nil {
		return "", err
	}
	return interview.Code, nil
}

// Artifacts is everything a feedback pass reads about one interview.
type Artifacts struct {
	Interview *models.Interview
	Attempts  []models.ProblemAttempt
}

// Artifacts loads the interview with its transcript and problem attempts in presentation order.
func (m *Manager) Artifacts(ctx context.Context, userID, interviewID string) (*Artifacts, error) {
	const op = "load artifacts"
	interview, err := m.owned(ctx, op, userID, interviewID)
	if err != nil {
		return nil, err
	}
	out := &Artifacts{Interview: interview}
	for _, id := range interview.ProblemAttemptIDs {
		attempt, err := m.store.GetProblemAttempt(ctx, id)
		if err != nil {
			return nil, fromStore(op, "problem attempt", err)
		}
		out.Attempts = append(out.Attempts, *attempt)
	}
	return out, nil
}

// AttachFeedback stores synthesized feedback without touching billing.
func (m *Manager) AttachFeedback(ctx context.Context, userID, interviewID string, fb *models.InterviewFeedback) error {
	const op = "attach feedback"
	interview, err := m.owned(ctx, op, userID, interviewID)
	if err != nil {
		return err
	}
	if err := fb.Validate(interview.Mode); err != nil {
		return newError(KindValidation, op, "feedback does not match the interview mode", err)
	}
	if err := m.store.UpdateInterview(ctx, interviewID, repositories.InterviewPatch{Feedback: fb}); err != nil {
		return fromStore(op, "interview", err)
	}
	return nil
}
