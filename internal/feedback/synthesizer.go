package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JGenereux/ai-interviewer/internal/llm"
	"github.com/JGenereux/ai-interviewer/internal/metrics"
	"github.com/JGenereux/ai-interviewer/internal/models"
	"github.com/JGenereux/ai-interviewer/internal/prompts"

	"go.uber.org/zap"
)

var (
	// ErrFeedbackGenerationFailed means the provider could not produce an answer.
	ErrFeedbackGenerationFailed = errors.New("feedback generation failed")
	// ErrInvalidFeedback means the provider answered with something that is not valid feedback.
	ErrInvalidFeedback = models.ErrInvalidFeedback
)

// Input is the material one evaluation is built from.
type Input struct {
	Mode        models.Mode
	Transcript  []models.Message
	FinalCode   string
	Language    string
	Submissions []models.Submission
	Question    *models.QuestionContext
}

// promptData is what the feedback templates see.
type promptData struct {
	Mode        string
	Transcript  string
	FinalCode   string
	Language    string
	Submissions []models.Submission
	Question    *models.QuestionContext
}

var temperature float32 = 0.2

type Synthesizer struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	logger   *zap.Logger
}

func NewSynthesizer(provider llm.Provider, pm prompts.PromptProvider, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{provider: provider, prompts: pm, logger: logger}
}

// Synthesize produces feedback whose shape matches in.Mode. Provider failures wrap
// ErrFeedbackGenerationFailed; malformed or out-of-range output wraps ErrInvalidFeedback.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (*models.InterviewFeedback, error) {
	if !in.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidFeedback, in.Mode)
	}

	prompt, err := s.prompts.BuildPrompt("feedback", string(in.Mode), buildPromptData(in))
	if err != nil {
		return nil, fmt.Errorf("build feedback prompt: %w", err)
	}

	raw, err := s.provider.GenerateStructured(ctx, llm.StructuredRequest{
		Prompt:      prompt,
		Schema:      SchemaFor(in.Mode),
		Temperature: &temperature,
	})
	if err != nil {
		metrics.FeedbackFailed("generation")
		s.logger.Error("feedback generation failed",
			zap.String("provider", s.provider.GetProviderName()),
			zap.String("mode", string(in.Mode)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrFeedbackGenerationFailed, err)
	}

	fb, err := Decode(raw, in.Mode)
	if err != nil {
		metrics.FeedbackFailed("validation")
		s.logger.Warn("provider returned invalid feedback",
			zap.String("mode", string(in.Mode)),
			zap.Int("bytes", len(raw)),
			zap.Error(err),
		)
		return nil, err
	}
	return fb, nil
}

// Decode strictly parses a feedback document and validates it against mode.
// Unknown fields are rejected rather than dropped.
func Decode(raw []byte, mode models.Mode) (*models.InterviewFeedback, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var fb models.InterviewFeedback
	if err := dec.Decode(&fb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeedback, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after feedback object", ErrInvalidFeedback)
	}
	if err := fb.Validate(mode); err != nil {
		return nil, err
	}
	return &fb, nil
}

// buildPromptData hides code artifacts from behavioral prompts.
func buildPromptData(in Input) promptData {
	data := promptData{
		Mode:       string(in.Mode),
		Transcript: FormatTranscript(in.Transcript),
	}
	if in.Mode.IncludesTechnical() {
		data.FinalCode = in.FinalCode
		data.Language = in.Language
		data.Submissions = in.Submissions
		data.Question = in.Question
	}
	return data
}

// FormatTranscript renders messages one per line ordered by created time.
func FormatTranscript(messages []models.Message) string {
	if len(messages) == 0 {
		return "(no conversation was recorded)"
	}
	ordered := make([]models.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Created < ordered[j].Created })

	var sb strings.Builder
	for _, m := range ordered {
		speaker := m.Role
		if m.Agent != "" {
			speaker += " (" + m.Agent + ")"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, strings.TrimSpace(m.Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}
