package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JGenereux/ai-interviewer/internal/models"

	"go.uber.org/zap"
)

type Phase string

const (
	PhaseGreeting   Phase = "greeting"
	PhaseDispatch   Phase = "dispatch"
	PhaseBehavioral Phase = "behavioral"
	PhaseTechnical  Phase = "technical"
	PhaseFeedback   Phase = "feedback"
	PhaseClosing    Phase = "closing"
	PhaseTerminated Phase = "terminated"
)

// State is a snapshot of where the conversation is.
type State struct {
	Phase             Phase  `json:"phase"`
	Active            Role   `json:"active"`
	Completed         []Role `json:"completed"`
	PendingEnd        bool   `json:"pendingEnd"`
	FeedbackRequested bool   `json:"feedbackRequested"`
	FeedbackDelivered bool   `json:"feedbackDelivered"`
	QuestionFetched   bool   `json:"questionFetched"`
	ActiveTool        string `json:"activeTool,omitempty"`
}

// Outbound is a frame the session pushes to the client.
type Outbound struct {
	Type    string `json:"type"`
	Agent   Role   `json:"agent,omitempty"`
	Tool    string `json:"tool,omitempty"`
	CallID  string `json:"callId,omitempty"`
	Content string `json:"content,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Outbound frame types.
const (
	FrameToolResult     = "tool_result"
	FrameAgentContext   = "agent_context"
	FrameInterviewEnded = "interview_ended"
	FrameError          = "error"
	FrameState          = "state"
)

// Session drives one interview conversation. Only one agent is active at a time and at
// most one tool call is in flight.
type Session struct {
	cfg    SessionConfig
	agents map[Role]*Agent
	tools  *Registry
	logger *zap.Logger

	mu           sync.Mutex
	state        State
	plan         []Role
	resumePhase  Phase
	code         string
	language     string
	whiteboard   []byte
	whiteboardMT string
	question     *models.Question
	attemptID    string
	feedback     *models.InterviewFeedback
	emit         func(Outbound)
}

func NewSession(cfg SessionConfig, agents map[Role]*Agent, tools *Registry, logger *zap.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tools == nil {
		tools = &Registry{tools: map[string]Tool{}}
	}
	return &Session{
		cfg:      cfg,
		agents:   agents,
		tools:    tools,
		logger:   logger.With(zap.String("interview_id", cfg.InterviewID)),
		plan:     Phases(cfg.Mode),
		language: cfg.PreselectedLanguage,
		state:    State{Phase: PhaseGreeting, Active: RoleCoordinator},
	}, nil
}

func (s *Session) Config() SessionConfig { return s.cfg }

func (s *Session) Agent(r Role) *Agent { return s.agents[r] }

// SetEmitter installs the sink for outbound frames.
func (s *Session) SetEmitter(fn func(Outbound)) {
	s.mu.Lock()
	s.emit = fn
	s.mu.Unlock()
}

// Emit pushes a frame to the client if an emitter is installed.
func (s *Session) Emit(o Outbound) {
	s.mu.Lock()
	fn := s.emit
	s.mu.Unlock()
	if fn != nil {
		fn(o)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Completed = append([]Role(nil), s.state.Completed...)
	return st
}

// Outcome reports side effects of an event the caller must act on.
type Outcome struct {
	Terminated bool
	// Message is a transcript entry the caller must persist.
	Message *models.Message
}

// HandleEvent applies one transport event.
func (s *Session) HandleEvent(ev Event) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase == PhaseTerminated {
		return Outcome{Terminated: true}, ErrSessionTerminated
	}

	switch ev.Type {
	case EventAgentStart:
		return Outcome{}, s.startAgent(ev.Agent)
	case EventToolStart:
		return Outcome{}, s.toolStart(ev.Tool)
	case EventToolEnd:
		if s.state.ActiveTool == ev.Tool {
			s.state.ActiveTool = ""
		}
		return Outcome{}, nil
	case EventAudioDone:
		if !s.state.PendingEnd {
			return Outcome{}, nil
		}
		s.state.PendingEnd = false
		s.state.Phase = PhaseTerminated
		s.logger.Info("interview session terminated", zap.String("user_id", s.cfg.UserID))
		return Outcome{Terminated: true}, nil
	case EventCancelEnd:
		if s.state.PendingEnd {
			s.state.PendingEnd = false
			s.state.Phase = s.resumePhase
			s.logger.Info("end of interview cancelled by candidate")
		}
		return Outcome{}, nil
	case EventCodeUpdate:
		s.code = ev.Code
		if ev.Language != "" {
			s.language = ev.Language
		}
		return Outcome{}, nil
	case EventWhiteboardUpdate:
		s.whiteboard = ev.Image
		s.whiteboardMT = ev.MimeType
		return Outcome{}, nil
	case EventMessage:
		m := ev.Message
		if m == nil || m.MessageID == "" || m.Content == "" || m.Created <= 0 {
			return Outcome{}, ErrInvalidMessage
		}
		switch m.Role {
		case "user", "assistant", "system":
		default:
			return Outcome{}, fmt.Errorf("%w: role %q", ErrInvalidMessage, m.Role)
		}
		msg := *m
		if msg.Agent == "" && msg.Role != "user" {
			msg.Agent = string(s.state.Active)
		}
		return Outcome{Message: &msg}, nil
	}
	return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
}

func (s *Session) startAgent(to Role) error {
	from := s.state.Active
	if to == from {
		return nil
	}
	if !CanHandoff(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalHandoff, from, to)
	}
	if s.state.ActiveTool != "" {
		return fmt.Errorf("%w: %s still running", ErrToolBusy, s.state.ActiveTool)
	}

	if to == RoleCoordinator {
		s.state.Completed = append(s.state.Completed, from)
		s.state.Active = RoleCoordinator
		if len(s.state.Completed) < len(s.plan) {
			s.state.Phase = PhaseDispatch
		} else {
			s.state.Phase = PhaseFeedback
		}
		s.logger.Info("control returned to coordinator", zap.String("from", string(from)), zap.String("phase", string(s.state.Phase)))
		return nil
	}

	switch s.state.Phase {
	case PhaseGreeting, PhaseDispatch:
	default:
		return fmt.Errorf("%w: cannot start %s during %s", ErrPhaseOrder, to, s.state.Phase)
	}
	next := len(s.state.Completed)
	if next >= len(s.plan) || s.plan[next] != to {
		return fmt.Errorf("%w: %s is not the next phase for mode %s", ErrPhaseOrder, to, s.cfg.Mode)
	}
	s.state.Active = to
	s.state.Phase = Phase(to)
	s.logger.Info("phase started", zap.String("agent", string(to)))
	return nil
}

func (s *Session) toolStart(tool string) error {
	if err := s.checkTool(tool); err != nil {
		return err
	}
	s.state.ActiveTool = tool
	return nil
}

// checkTool enforces ownership and phase preconditions. Caller holds mu.
func (s *Session) checkTool(tool string) error {
	owner, ok := OwnerOf(tool)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
	if owner != s.state.Active {
		return fmt.Errorf("%w: %s belongs to %s, active agent is %s", ErrToolNotAllowed, tool, owner, s.state.Active)
	}
	if s.state.ActiveTool != "" && s.state.ActiveTool != tool {
		return fmt.Errorf("%w: %s", ErrToolBusy, s.state.ActiveTool)
	}
	if tool == ToolGetFeedback && s.state.Phase != PhaseFeedback {
		return fmt.Errorf("%w: feedback is only available after every phase has finished", ErrPhaseOrder)
	}
	return nil
}

// Invoke runs a tool on behalf of the active agent.
func (s *Session) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	s.mu.Lock()
	if s.state.Phase == PhaseTerminated {
		s.mu.Unlock()
		return "", ErrSessionTerminated
	}
	if err := s.checkTool(name); err != nil {
		s.mu.Unlock()
		return "", err
	}
	tool, ok := s.tools.Get(name)
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s is not configured", ErrUnknownTool, name)
	}

	out, err := tool.Call(ctx, s, args)
	if err != nil {
		s.logger.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
		return "", err
	}
	return out, nil
}

// Code returns the live editor buffer and its language.
func (s *Session) Code() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.language
}

// Whiteboard returns the latest whiteboard snapshot.
func (s *Session) Whiteboard() ([]byte, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.whiteboard, s.whiteboardMT
}

// Question returns the problem fetched for this session, if any.
func (s *Session) Question() (*models.Question, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.question, s.attemptID
}

// SetQuestion records the problem presented in this session.
func (s *Session) SetQuestion(q *models.Question, attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.question = q
	s.attemptID = attemptID
	s.state.QuestionFetched = true
}

// RequestEnd moves to closing and waits for the final audio or a cancel.
func (s *Session) RequestEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.PendingEnd || s.state.Phase == PhaseTerminated {
		return
	}
	s.resumePhase = s.state.Phase
	s.state.PendingEnd = true
	s.state.Phase = PhaseClosing
}

// MarkFeedbackRequested reports whether this is the first request.
func (s *Session) MarkFeedbackRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := !s.state.FeedbackRequested
	s.state.FeedbackRequested = true
	return first
}

// FeedbackFailed clears a request whose synthesis failed so the coordinator can ask again.
func (s *Session) FeedbackFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.FeedbackDelivered {
		s.state.FeedbackRequested = false
	}
}

// DeliverFeedback stores the synthesized evaluation and pushes it into the coordinator's context.
func (s *Session) DeliverFeedback(fb *models.InterviewFeedback) {
	s.mu.Lock()
	s.feedback = fb
	s.state.FeedbackDelivered = true
	s.mu.Unlock()

	s.Emit(Outbound{Type: FrameAgentContext, Agent: RoleCoordinator, Content: "Interview analysis is ready. Summarise it for the candidate.", Payload: fb})
}

func (s *Session) Feedback() *models.InterviewFeedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedback
}
