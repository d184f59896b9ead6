package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/JGenereux/ai-interviewer/internal/llm"
	"github.com/JGenereux/ai-interviewer/internal/models"
	"github.com/JGenereux/ai-interviewer/internal/prompts"
)

type fakeProvider struct {
	generateFn func(ctx context.Context, req llm.StructuredRequest) ([]byte, error)
	last       llm.StructuredRequest
}

func (f *fakeProvider) GenerateStructured(ctx context.Context, req llm.StructuredRequest) ([]byte, error) {
	f.last = req
	return f.generateFn(ctx, req)
}

func (f *fakeProvider) InterpretImage(context.Context, string, []byte, string) (string, error) {
	return "", nil
}

func (f *fakeProvider) GetProviderName() string { return "fake" }

func newSynth(t *testing.T, p *fakeProvider) *Synthesizer {
	t.Helper()
	pm, err := prompts.NewPromptManager()
	if err != nil {
		t.Fatalf("NewPromptManager error: %v", err)
	}
	return NewSynthesizer(p, pm, nil)
}

func sampleFeedback(mode models.Mode) map[string]any {
	doc := map[string]any{
		"mode":               string(mode),
		"overallScore":       7,
		"overallSummary":     "Solid performance.",
		"hireRecommendation": "hire",
		"keyStrengths":       []string{"clear"},
		"keyWeaknesses":      []string{"rushed"},
		"recommendations":    []map[string]any{{"area": "testing", "suggestion": "write edge cases", "priority": "high"}},
		"readyForRole":       true,
		"suggestedNextSteps": []string{"practice graphs"},
		"additionalComments": "",
	}
	if mode.IncludesTechnical() {
		doc["technical"] = map[string]any{
			"problemSolving": 7, "codeQuality": 6, "correctness": 8, "efficiency": 6,
			"complexityAnalysis": "O(n)", "testingApproach": "manual",
			"strengths": []string{"hashing"}, "improvements": []string{"naming"},
		}
	}
	if mode.IncludesBehavioral() {
		doc["behavioral"] = map[string]any{
			"communication": 8, "leadership": 6, "teamwork": 7, "adaptability": 7,
			"starMethodUsage": "good", "resumeAlignment": "strong",
			"highlights": []string{"migration story"}, "improvements": []string{"metrics"},
		}
	}
	return doc
}

func respond(doc map[string]any) func(context.Context, llm.StructuredRequest) ([]byte, error) {
	return func(context.Context, llm.StructuredRequest) ([]byte, error) {
		return json.Marshal(doc)
	}
}

func sampleInput(mode models.Mode) Input {
	return Input{
		Mode: mode,
		Transcript: []models.Message{
			{MessageID: "2", Role: "user", Content: "I led the migration.", Created: 20},
			{MessageID: "1", Role: "assistant", Agent: "behavioral", Content: "Tell me about a project.", Created: 10},
		},
		FinalCode:   "def two_sum(nums): pass",
		Language:    "python",
		Submissions: []models.Submission{{UserCode: "def two_sum(nums): pass", Stderr: "AssertionError"}},
		Question:    &models.QuestionContext{Title: "Two Sum", Difficulty: "Easy", PromptMarkdown: "find a pair"},
	}
}

func TestSynthesizeModeSchemaConsistency(t *testing.T) {
	for _, mode := range []models.Mode{models.ModeFull, models.ModeBehavioral, models.ModeTechnical} {
		t.Run(string(mode), func(t *testing.T) {
			p := &fakeProvider{generateFn: respond(sampleFeedback(mode))}
			fb, err := newSynth(t, p).Synthesize(context.Background(), sampleInput(mode))
			if err != nil {
				t.Fatalf("Synthesize error: %v", err)
			}
			if (fb.Technical != nil) != mode.IncludesTechnical() {
				t.Fatalf("technical block presence wrong for %s", mode)
			}
			if (fb.Behavioral != nil) != mode.IncludesBehavioral() {
				t.Fatalf("behavioral block presence wrong for %s", mode)
			}

			schema := p.last.Schema
			_, hasTech := schema.Properties["technical"]
			_, hasBeh := schema.Properties["behavioral"]
			if hasTech != mode.IncludesTechnical() || hasBeh != mode.IncludesBehavioral() {
				t.Fatalf("schema blocks wrong for %s: technical=%v behavioral=%v", mode, hasTech, hasBeh)
			}
		})
	}
}

func TestBehavioralPromptSeesOnlyConversation(t *testing.T) {
	p := &fakeProvider{generateFn: respond(sampleFeedback(models.ModeBehavioral))}
	if _, err := newSynth(t, p).Synthesize(context.Background(), sampleInput(models.ModeBehavioral)); err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	prompt := p.last.Prompt
	if !strings.Contains(prompt, "I led the migration.") {
		t.Fatalf("behavioral prompt must include the conversation:\n%s", prompt)
	}
	for _, leaked := range []string{"two_sum", "AssertionError", "Two Sum"} {
		if strings.Contains(prompt, leaked) {
			t.Fatalf("behavioral prompt leaked %q:\n%s", leaked, prompt)
		}
	}
	if strings.Index(prompt, "Tell me about a project.") > strings.Index(prompt, "I led the migration.") {
		t.Fatalf("transcript must be ordered by created time")
	}
}

func TestTechnicalPromptSeesCodeAndSubmissions(t *testing.T) {
	p := &fakeProvider{generateFn: respond(sampleFeedback(models.ModeTechnical))}
	if _, err := newSynth(t, p).Synthesize(context.Background(), sampleInput(models.ModeTechnical)); err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	for _, want := range []string{"Two Sum", "run 1 (failed)", "stderr: AssertionError", "Final code (python)", "I led the migration."} {
		if !strings.Contains(p.last.Prompt, want) {
			t.Fatalf("technical prompt missing %q:\n%s", want, p.last.Prompt)
		}
	}
}

func TestSynthesizeGenerationFailure(t *testing.T) {
	p := &fakeProvider{generateFn: func(context.Context, llm.StructuredRequest) ([]byte, error) {
		return nil, &llm.ProviderError{Provider: "fake", Code: llm.ErrCodeServiceDown, Message: "down"}
	}}
	_, err := newSynth(t, p).Synthesize(context.Background(), sampleInput(models.ModeFull))
	if !errors.Is(err, ErrFeedbackGenerationFailed) {
		t.Fatalf("expected ErrFeedbackGenerationFailed, got %v", err)
	}
	if errors.Is(err, ErrInvalidFeedback) {
		t.Fatalf("generation failure must be distinct from validation failure")
	}
}

func TestSynthesizeRejectsMalformedOutput(t *testing.T) {
	cases := map[string]func() []byte{
		"not json": func() []byte { return []byte("Great job!") },
		"missing block": func() []byte {
			doc := sampleFeedback(models.ModeFull)
			delete(doc, "technical")
			b, _ := json.Marshal(doc)
			return b
		},
		"extra block": func() []byte {
			doc := sampleFeedback(models.ModeBehavioral)
			doc["technical"] = sampleFeedback(models.ModeTechnical)["technical"]
			b, _ := json.Marshal(doc)
			return b
		},
		"unknown field": func() []byte {
			doc := sampleFeedback(models.ModeBehavioral)
			doc["confidence"] = 0.9
			b, _ := json.Marshal(doc)
			return b
		},
		"score out of range": func() []byte {
			doc := sampleFeedback(models.ModeBehavioral)
			doc["overallScore"] = 11
			b, _ := json.Marshal(doc)
			return b
		},
	}
	mode := map[string]models.Mode{
		"not json": models.ModeFull, "missing block": models.ModeFull, "extra block": models.ModeBehavioral,
		"unknown field": models.ModeBehavioral, "score out of range": models.ModeBehavioral,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			raw := body()
			p := &fakeProvider{generateFn: func(context.Context, llm.StructuredRequest) ([]byte, error) { return raw, nil }}
			_, err := newSynth(t, p).Synthesize(context.Background(), sampleInput(mode[name]))
			if !errors.Is(err, ErrInvalidFeedback) {
				t.Fatalf("expected ErrInvalidFeedback, got %v", err)
			}
		})
	}
}

func TestFormatTranscriptEmpty(t *testing.T) {
	if got := FormatTranscript(nil); !strings.Contains(got, "no conversation") {
		t.Fatalf("unexpected empty transcript rendering: %q", got)
	}
}
