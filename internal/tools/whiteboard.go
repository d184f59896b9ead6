package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JGenereux/ai-interviewer/internal/agents"
	"github.com/JGenereux/ai-interviewer/internal/llm"
	"github.com/JGenereux/ai-interviewer/internal/prompts"
)

var (
	// ErrImageTooLarge is the caught form of a provider payload-too-large failure.
	ErrImageTooLarge = errors.New("whiteboard image too large")
	ErrNoImage       = errors.New("no whiteboard image")
)

const (
	tooLargeMessage = "The whiteboard drawing is too large to analyse. Ask the candidate to describe what they drew, or to clear unused parts of the board."
	noImageMessage  = "The whiteboard is empty. Ask the candidate to draw their idea first."
)

// Vision interprets whiteboard snapshots.
type Vision struct {
	provider llm.Provider
	prompts  prompts.PromptProvider
	maxBytes int
}

func NewVision(provider llm.Provider, pm prompts.PromptProvider, maxBytes int) *Vision {
	return &Vision{provider: provider, prompts: pm, maxBytes: maxBytes}
}

// Interpret describes image in text. Oversized images fail with ErrImageTooLarge whether
// the local limit or the provider rejected them.
func (v *Vision) Interpret(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", ErrNoImage
	}
	if v.maxBytes > 0 && len(image) > v.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(image), v.maxBytes)
	}
	prompt, err := v.prompts.BuildPrompt("tools", "whiteboard", nil)
	if err != nil {
		return "", err
	}
	text, err := v.provider.InterpretImage(ctx, prompt, image, mimeType)
	if errors.Is(err, llm.ErrPayloadTooLarge) {
		return "", fmt.Errorf("%w: %w", ErrImageTooLarge, err)
	}
	return text, err
}

type GetWhiteboardImage struct {
	vision *Vision
}

func NewGetWhiteboardImage(v *Vision) *GetWhiteboardImage { return &GetWhiteboardImage{vision: v} }

func (t *GetWhiteboardImage) Name() string { return agents.ToolGetWhiteboardImage }

// Call never fails because of the image itself; it explains instead.
func (t *GetWhiteboardImage) Call(ctx context.Context, s *agents.Session, _ json.RawMessage) (string, error) {
	image, mimeType := s.Whiteboard()
	text, err := t.vision.Interpret(ctx, image, mimeType)
	switch {
	case errors.Is(err, ErrImageTooLarge):
		return tooLargeMessage, nil
	case errors.Is(err, ErrNoImage):
		return noImageMessage, nil
	case err != nil:
		return "", err
	}
	return text, nil
}
