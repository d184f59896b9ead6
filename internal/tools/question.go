package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JGenereux/ai-interviewer/internal/agents"
	"github.com/JGenereux/ai-interviewer/internal/models"
)

// QuestionPicker selects a non-repeating question and records the selection.
type QuestionPicker interface {
	Next(ctx context.Context, userID string, difficulty models.Difficulty) (*models.Question, bool, error)
}

// AttemptRecorder opens a problem attempt on the interview.
type AttemptRecorder interface {
	RecordQuestion(ctx context.Context, userID, interviewID, questionID, language string) (*models.ProblemAttempt, error)
}

type GetQuestion struct {
	picker   QuestionPicker
	attempts AttemptRecorder
}

func NewGetQuestion(picker QuestionPicker, attempts AttemptRecorder) *GetQuestion {
	return &GetQuestion{picker: picker, attempts: attempts}
}

func (t *GetQuestion) Name() string { return agents.ToolGetQuestion }

type questionArgs struct {
	Difficulty string `json:"difficulty"`
}

// Call presents one question per session. Later calls return the same problem.
func (t *GetQuestion) Call(ctx context.Context, s *agents.Session, args json.RawMessage) (string, error) {
	if q, attemptID := s.Question(); q != nil {
		return renderQuestion(&models.QuestionResponse{Question: q, AttemptID: attemptID})
	}

	var a questionArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return "", fmt.Errorf("get_question arguments: %w", err)
		}
	}
	cfg := s.Config()
	difficulty := cfg.Difficulty
	if d, ok := models.ParseDifficulty(a.Difficulty); ok {
		difficulty = d
	}
	_, language := s.Code()

	resp, err := t.Fetch(ctx, cfg.UserID, cfg.InterviewID, difficulty, language)
	if err != nil {
		return "", err
	}
	s.SetQuestion(resp.Question, resp.AttemptID)
	return renderQuestion(resp)
}

// Fetch picks a question and opens an attempt for it.
func (t *GetQuestion) Fetch(ctx context.Context, userID, interviewID string, difficulty models.Difficulty, language string) (*models.QuestionResponse, error) {
	q, repeated, err := t.picker.Next(ctx, userID, difficulty)
	if err != nil {
		return nil, err
	}
	attempt, err := t.attempts.RecordQuestion(ctx, userID, interviewID, q.ID, language)
	if err != nil {
		return nil, err
	}
	return &models.QuestionResponse{Question: q, AttemptID: attempt.ID, Repeated: repeated}, nil
}

func renderQuestion(resp *models.QuestionResponse) (string, error) {
	q := resp.Question
	out := struct {
		*models.QuestionContext
		TestCases   []models.TestCase `json:"test_cases,omitempty"`
		StarterCode map[string]string `json:"starter_code,omitempty"`
	}{q.Context(), q.TestCases, q.StarterCode}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
