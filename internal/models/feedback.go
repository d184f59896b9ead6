package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidFeedback = errors.New("invalid interview feedback")

// InterviewFeedback is a tagged union keyed by Mode: Technical is present exactly when the
// mode includes the technical phase and Behavioral exactly when it includes the behavioral one.
type InterviewFeedback struct {
	Mode               Mode                `json:"mode"`
	OverallScore       int                 `json:"overallScore"`
	OverallSummary     string              `json:"overallSummary"`
	HireRecommendation HireRecommendation  `json:"hireRecommendation"`
	KeyStrengths       []string            `json:"keyStrengths"`
	KeyWeaknesses      []string            `json:"keyWeaknesses"`
	Recommendations    []Recommendation    `json:"recommendations"`
	ReadyForRole       bool                `json:"readyForRole"`
	SuggestedNextSteps []string            `json:"suggestedNextSteps"`
	AdditionalComments string              `json:"additionalComments"`
	Technical          *TechnicalFeedback  `json:"technical,omitempty"`
	Behavioral         *BehavioralFeedback `json:"behavioral,omitempty"`
}

type Recommendation struct {
	Area       string   `json:"area"`
	Suggestion string   `json:"suggestion"`
	Priority   Priority `json:"priority"`
}

// TechnicalFeedback also serves as the per-problem feedback on a ProblemAttempt.
type TechnicalFeedback struct {
	ProblemSolving     int      `json:"problemSolving"`
	CodeQuality        int      `json:"codeQuality"`
	Correctness        int      `json:"correctness"`
	Efficiency         int      `json:"efficiency"`
	ComplexityAnalysis string   `json:"complexityAnalysis"`
	TestingApproach    string   `json:"testingApproach"`
	Strengths          []string `json:"strengths"`
	Improvements       []string `json:"improvements"`
}

type BehavioralFeedback struct {
	Communication   int      `json:"communication"`
	Leadership      int      `json:"leadership"`
	Teamwork        int      `json:"teamwork"`
	Adaptability    int      `json:"adaptability"`
	StarMethodUsage string   `json:"starMethodUsage"`
	ResumeAlignment string   `json:"resumeAlignment"`
	Highlights      []string `json:"highlights"`
	Improvements    []string `json:"improvements"`
}

// Validate checks ranges, enums and that exactly the blocks implied by mode are present.
func (f *InterviewFeedback) Validate(mode Mode) error {
	if f == nil {
		return fmt.Errorf("%w: feedback is empty", ErrInvalidFeedback)
	}
	var problems []string
	if !mode.Valid() {
		problems = append(problems, "unknown mode "+string(mode))
	}
	if f.Mode != mode {
		problems = append(problems, fmt.Sprintf("mode is %q, expected %q", f.Mode, mode))
	}
	if !inScore(f.OverallScore) {
		problems = append(problems, "overallScore must be between 1 and 10")
	}
	if strings.TrimSpace(f.OverallSummary) == "" {
		problems = append(problems, "overallSummary is required")
	}
	if !f.HireRecommendation.Valid() {
		problems = append(problems, "hireRecommendation must be one of "+strings.Join(HireRecommendationsList(), ", "))
	}
	for i, r := range f.Recommendations {
		if strings.TrimSpace(r.Area) == "" || strings.TrimSpace(r.Suggestion) == "" {
			problems = append(problems, fmt.Sprintf("recommendations[%d] needs area and suggestion", i))
		}
		switch r.Priority {
		case PriorityHigh, PriorityMedium, PriorityLow:
		default:
			problems = append(problems, fmt.Sprintf("recommendations[%d].priority must be high, medium or low", i))
		}
	}

	switch {
	case mode.IncludesTechnical() && f.Technical == nil:
		problems = append(problems, "technical block is required for mode "+string(mode))
	case !mode.IncludesTechnical() && f.Technical != nil:
		problems = append(problems, "technical block is not allowed for mode "+string(mode))
	case f.Technical != nil:
		problems = append(problems, f.Technical.problems("technical")...)
	}
	switch {
	case mode.IncludesBehavioral() && f.Behavioral == nil:
		problems = append(problems, "behavioral block is required for mode "+string(mode))
	case !mode.IncludesBehavioral() && f.Behavioral != nil:
		problems = append(problems, "behavioral block is not allowed for mode "+string(mode))
	case f.Behavioral != nil:
		problems = append(problems, f.Behavioral.problems()...)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFeedback, strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks a standalone technical block, as attached to a ProblemAttempt.
func (t *TechnicalFeedback) Validate() error {
	if problems := t.problems("feedback"); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFeedback, strings.Join(problems, "; "))
	}
	return nil
}

func (t *TechnicalFeedback) problems(prefix string) []string {
	var out []string
	scores := map[string]int{
		"problemSolving": t.ProblemSolving,
		"codeQuality":    t.CodeQuality,
		"correctness":    t.Correctness,
		"efficiency":     t.Efficiency,
	}
	for _, name := range []string{"problemSolving", "codeQuality", "correctness", "efficiency"} {
		if !inScore(scores[name]) {
			out = append(out, prefix+"."+name+" must be between 1 and 10")
		}
	}
	return out
}

func (b *BehavioralFeedback) problems() []string {
	var out []string
	scores := map[string]int{
		"communication": b.Communication,
		"leadership":    b.Leadership,
		"teamwork":      b.Teamwork,
		"adaptability":  b.Adaptability,
	}
	for _, name := range []string{"communication", "leadership", "teamwork", "adaptability"} {
		if !inScore(scores[name]) {
			out = append(out, "behavioral."+name+" must be between 1 and 10")
		}
	}
	return out
}

func inScore(v int) bool { return v >= 1 && v <= 10 }
