package tools

import (
	"context"
	"encoding/json"

	"github.com/JGenereux/ai-interviewer/internal/agents"
	"github.com/JGenereux/ai-interviewer/internal/utils"
)

// CodeReader returns the last saved editor buffer.
type CodeReader interface {
	CurrentCode(ctx context.Context, userID, interviewID string) (string, error)
}

const emptyEditor = "The editor is empty. The candidate has not written any code yet."

// GetUserCode reads the buffer on every call; nothing is cached between turns.
type GetUserCode struct {
	saved CodeReader
}

func NewGetUserCode(saved CodeReader) *GetUserCode { return &GetUserCode{saved: saved} }

func (t *GetUserCode) Name() string { return agents.ToolGetUserCode }

// Call prefers the live buffer pushed over the session and falls back to the saved one.
func (t *GetUserCode) Call(ctx context.Context, s *agents.Session, _ json.RawMessage) (string, error) {
	code, _ := s.Code()
	if code == "" && t.saved != nil {
		cfg := s.Config()
		saved, err := t.saved.CurrentCode(ctx, cfg.UserID, cfg.InterviewID)
		if err != nil {
			return "", err
		}
		code = saved
	}
	if numbered := utils.AddLineNumbers(code); numbered != "" {
		return numbered, nil
	}
	return emptyEditor, nil
}
