package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JGenereux/ai-interviewer/internal/agents"
	"github.com/JGenereux/ai-interviewer/internal/llm"
	"github.com/JGenereux/ai-interviewer/internal/models"
	"github.com/JGenereux/ai-interviewer/internal/prompts"
	"github.com/JGenereux/ai-interviewer/internal/utils"
)

// MaxHintLines bounds both the snippet and the highlighted range.
const MaxHintLines = 3

var ErrInvalidHint = errors.New("invalid hint")

var hintSchema = llm.Object("A small nudge for a stuck candidate", map[string]*llm.Schema{
	"startLine": llm.IntRange("First line the hint refers to", 1, 10000),
	"endLine":   llm.IntRange("Last line the hint refers to", 1, 10000),
	"snippet":   llm.String("One to three lines of code or pseudo-code, never a full solution"),
})

type Hinter struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
}

func NewHinter(provider llm.Provider, pm prompts.PromptProvider) *Hinter {
	return &Hinter{provider: provider, prompts: pm}
}

// Hint asks the provider where the candidate should look and clamps the answer to at most
// MaxHintLines lines inside the code.
func (h *Hinter) Hint(ctx context.Context, code, problem string) (*models.HintResponse, error) {
	prompt, err := h.prompts.BuildPrompt("tools", "hint", map[string]string{
		"ProblemDescription": problem,
		"NumberedCode":       utils.AddLineNumbers(code),
	})
	if err != nil {
		return nil, err
	}
	raw, err := h.provider.GenerateStructured(ctx, llm.StructuredRequest{Prompt: prompt, Schema: hintSchema})
	if err != nil {
		return nil, err
	}
	var hint models.HintResponse
	if err := json.Unmarshal(raw, &hint); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHint, err)
	}
	return clampHint(hint, utils.CountLines(code))
}

func clampHint(h models.HintResponse, lines int) (*models.HintResponse, error) {
	snippet := strings.Trim(h.Snippet, "\n")
	if strings.TrimSpace(snippet) == "" {
		return nil, fmt.Errorf("%w: empty snippet", ErrInvalidHint)
	}
	if parts := strings.Split(snippet, "\n"); len(parts) > MaxHintLines {
		snippet = strings.Join(parts[:MaxHintLines], "\n")
	}
	h.Snippet = snippet

	if lines < 1 {
		lines = 1
	}
	h.StartLine = clamp(h.StartLine, 1, lines)
	h.EndLine = clamp(h.EndLine, h.StartLine, lines)
	if h.EndLine-h.StartLine >= MaxHintLines {
		h.EndLine = h.StartLine + MaxHintLines - 1
	}
	return &h, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type ProvideHint struct {
	hinter *Hinter
}

func NewProvideHint(h *Hinter) *ProvideHint { return &ProvideHint{hinter: h} }

func (t *ProvideHint) Name() string { return agents.ToolProvideHint }

type hintArgs struct {
	Code               string `json:"code"`
	ProblemDescription string `json:"problemDescription"`
}

// Call defaults to the live buffer and the session's question when arguments are missing.
func (t *ProvideHint) Call(ctx context.Context, s *agents.Session, args json.RawMessage) (string, error) {
	var a hintArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return "", fmt.Errorf("provide_hint arguments: %w", err)
		}
	}
	if a.Code == "" {
		a.Code, _ = s.Code()
	}
	if a.ProblemDescription == "" {
		if q, _ := s.Question(); q != nil {
			a.ProblemDescription = q.Title + "\n" + q.PromptMarkdown
		}
	}
	if strings.TrimSpace(a.Code) == "" {
		return "The candidate has not written any code yet. Ask how they would start before offering a hint.", nil
	}

	hint, err := t.hinter.Hint(ctx, a.Code, a.ProblemDescription)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(hint)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
