package agents

import "errors"

var (
	ErrIllegalHandoff    = errors.New("handoff not allowed")
	ErrPhaseOrder        = errors.New("phase out of order")
	ErrUnknownTool       = errors.New("unknown tool")
	ErrToolNotAllowed    = errors.New("tool not available to the active agent")
	ErrToolBusy          = errors.New("another tool call is in progress")
	ErrSessionTerminated = errors.New("session has terminated")
	ErrUnknownEvent      = errors.New("unknown event type")
	ErrInvalidMessage    = errors.New("invalid transcript message")
)
