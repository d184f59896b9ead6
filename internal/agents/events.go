package agents

import (
	"encoding/json"

	"github.com/JGenereux/ai-interviewer/internal/models"
)

type EventType string

const (
	EventAgentStart       EventType = "agent_start"
	EventToolStart        EventType = "agent_tool_start"
	EventToolEnd          EventType = "agent_tool_end"
	EventAudioDone        EventType = "audio_done"
	EventCancelEnd        EventType = "cancel_end"
	EventCodeUpdate       EventType = "code_update"
	EventWhiteboardUpdate EventType = "whiteboard_update"
	// EventMessage carries one transcript entry to persist.
	EventMessage EventType = "message"
	// EventToolCall asks the server to execute a tool; it is not a state event.
	EventToolCall EventType = "tool_call"
)

// Event is one frame from the realtime transport.
type Event struct {
	Type     EventType       `json:"type"`
	Agent    Role            `json:"agent,omitempty"`
	Tool     string          `json:"tool,omitempty"`
	CallID   string          `json:"callId,omitempty"`
	Args     json.RawMessage `json:"args,omitempty"`
	Code     string          `json:"code,omitempty"`
	Language string          `json:"language,omitempty"`
	Image    []byte          `json:"image,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Message  *models.Message `json:"message,omitempty"`
}
