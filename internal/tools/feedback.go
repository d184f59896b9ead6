package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/agents"
	"github.com/JGenereux/ai-interviewer/internal/feedback"
	"github.com/JGenereux/ai-interviewer/internal/lifecycle"
	"github.com/JGenereux/ai-interviewer/internal/models"

	"go.uber.org/zap"
)

// ArtifactStore reads interview material and stores the resulting feedback.
type ArtifactStore interface {
	Artifacts(ctx context.Context, userID, interviewID string) (*lifecycle.Artifacts, error)
	AttachFeedback(ctx context.Context, userID, interviewID string, fb *models.InterviewFeedback) error
}

// QuestionLookup resolves the question behind a problem attempt.
type QuestionLookup interface {
	Get(ctx context.Context, id string) (*models.Question, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, in feedback.Input) (*models.InterviewFeedback, error)
}

// FeedbackService gathers an interview's artifacts, synthesizes feedback and stores it.
type FeedbackService struct {
	store     ArtifactStore
	questions QuestionLookup
	synth     Synthesizer
	logger    *zap.Logger
}

func NewFeedbackService(store ArtifactStore, questions QuestionLookup, synth Synthesizer, logger *zap.Logger) *FeedbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{store: store, questions: questions, synth: synth, logger: logger}
}

// LiveWork is editor state a live session holds but has not saved. A non-empty Code
// replaces the stored buffer.
type LiveWork struct {
	Code     string
	Language string
}

// Generate synthesizes and persists feedback for the interview.
func (f *FeedbackService) Generate(ctx context.Context, userID, interviewID string, live LiveWork) (*models.InterviewFeedback, error) {
	art, err := f.store.Artifacts(ctx, userID, interviewID)
	if err != nil {
		return nil, err
	}
	iv := art.Interview
	in := feedback.Input{
		Mode:       iv.Mode,
		Transcript: iv.Messages,
		FinalCode:  iv.Code,
		Language:   iv.Language,
	}
	if live.Code != "" {
		in.FinalCode = live.Code
		if live.Language != "" {
			in.Language = live.Language
		}
	}
	for _, a := range art.Attempts {
		in.Submissions = append(in.Submissions, a.Submissions...)
		if in.Language == "" {
			in.Language = a.Language
		}
	}
	if n := len(art.Attempts); n > 0 && f.questions != nil {
		if q, err := f.questions.Get(ctx, art.Attempts[n-1].QuestionID); err == nil {
			in.Question = q.Context()
		} else {
			f.logger.Warn("question lookup failed, evaluating without it",
				zap.String("interview_id", interviewID), zap.Error(err))
		}
	}

	fb, err := f.synth.Synthesize(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := f.store.AttachFeedback(ctx, userID, interviewID, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

const feedbackPlaceholder = "The interview analysis has started. It will appear in your context shortly. Do not evaluate the candidate until it arrives."

// GetFeedback returns a placeholder at once; the analysis reaches the coordinator out of band.
type GetFeedback struct {
	service *FeedbackService
	timeout time.Duration
	spawn   func(func())
	logger  *zap.Logger
}

func NewGetFeedback(service *FeedbackService, timeout time.Duration, logger *zap.Logger) *GetFeedback {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GetFeedback{service: service, timeout: timeout, spawn: func(fn func()) { go fn() }, logger: logger}
}

func (t *GetFeedback) Name() string { return agents.ToolGetFeedback }

func (t *GetFeedback) Call(_ context.Context, s *agents.Session, _ json.RawMessage) (string, error) {
	if !s.MarkFeedbackRequested() {
		if s.Feedback() != nil {
			return "The analysis is already in your context.", nil
		}
		return feedbackPlaceholder, nil
	}
	cfg := s.Config()
	code, language := s.Code()
	live := LiveWork{Code: code, Language: language}
	t.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		fb, err := t.service.Generate(ctx, cfg.UserID, cfg.InterviewID, live)
		if err != nil {
			s.FeedbackFailed()
			t.logger.Error("feedback synthesis failed",
				zap.String("interview_id", cfg.InterviewID),
				zap.String("user_id", cfg.UserID),
				zap.Error(err),
			)
			s.Emit(agents.Outbound{
				Type:    agents.FrameAgentContext,
				Agent:   agents.RoleCoordinator,
				Content: "The interview analysis could not be generated. You may call get_feedback again; otherwise tell the candidate their written feedback will be available later, without evaluating them yourself.",
			})
			return
		}
		s.DeliverFeedback(fb)
	})
	return feedbackPlaceholder, nil
}
