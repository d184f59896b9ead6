package tools

import (
	"context"
	"encoding/json"

	"github.com/JGenereux/ai-interviewer/internal/agents"
)

// EndInterview starts the closing round-trip. The session ends only after the final audio
// plays, and the candidate may cancel before that.
type EndInterview struct{}

func NewEndInterview() *EndInterview { return &EndInterview{} }

func (EndInterview) Name() string { return agents.ToolEndInterview }

func (EndInterview) Call(_ context.Context, s *agents.Session, _ json.RawMessage) (string, error) {
	s.RequestEnd()
	return "Acknowledged. Give your closing remarks now. The interview ends when you finish speaking unless the candidate asks to continue.", nil
}
