package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/agents"
	"github.com/JGenereux/ai-interviewer/internal/lifecycle"
	"github.com/JGenereux/ai-interviewer/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	FrameInit    = "init"
	FrameSession = "session"

	readLimit = 8 << 20
	pongWait  = 60 * time.Second
)

// InitFrame is the first message a client sends.
type InitFrame struct {
	Type          string `json:"type"`
	CandidateName string `json:"candidateName"`
	ResumeText    string `json:"resumeText"`
	Language      string `json:"language"`
	Difficulty    string `json:"difficulty"`
}

// SessionFrame answers init with the agents the transport should run.
type SessionFrame struct {
	Type        string          `json:"type"`
	InterviewID string          `json:"interviewId"`
	Start       agents.Role     `json:"start"`
	Agents      []*agents.Agent `json:"agents"`
	State       agents.State    `json:"state"`
}

// Lifecycle is what a live session needs from the interview lifecycle. End must be safe to
// call more than once.
type Lifecycle interface {
	End(ctx context.Context, userID, interviewID string) (*lifecycle.EndResult, error)
	RecordMessages(ctx context.Context, userID, interviewID string, messages []models.Message) (int64, error)
}

// SessionBuilder turns a config into a ready session.
type SessionBuilder func(cfg agents.SessionConfig) (*agents.Session, error)

// Bridge connects a websocket to an agents.Session.
type Bridge struct {
	lifecycle  Lifecycle
	build      SessionBuilder
	upgrader   websocket.Upgrader
	endTimeout time.Duration
	logger     *zap.Logger
}

func NewBridge(lc Lifecycle, build SessionBuilder, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Bridge{
		lifecycle:  lc,
		build:      build,
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin},
		endTimeout: 15 * time.Second,
		logger:     logger,
	}
}

// Serve upgrades the request and runs the session until it terminates or the client leaves.
// Leaving without terminating fires a best-effort End.
func (b *Bridge) Serve(w http.ResponseWriter, r *http.Request, interview *models.Interview) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.String("interview_id", interview.ID), zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(readLimit)

	log := b.logger.With(zap.String("interview_id", interview.ID), zap.String("user_id", interview.UserID))
	client := NewClient(conn)

	var init InitFrame
	if err := conn.ReadJSON(&init); err != nil || init.Type != FrameInit {
		_ = client.Send(agents.Outbound{Type: agents.FrameError, Content: "expected init"})
		return
	}
	cfg := agents.SessionConfig{
		InterviewID:         interview.ID,
		UserID:              interview.UserID,
		CandidateName:       init.CandidateName,
		ResumeText:          init.ResumeText,
		Mode:                interview.Mode,
		PreselectedLanguage: init.Language,
	}
	if d, ok := models.ParseDifficulty(init.Difficulty); ok {
		cfg.Difficulty = d
	}
	sess, err := b.build(cfg)
	if err != nil {
		_ = client.Send(agents.Outbound{Type: agents.FrameError, Content: err.Error()})
		return
	}
	sess.SetEmitter(func(o agents.Outbound) {
		if err := client.Send(o); err != nil {
			log.Debug("dropping frame for closed connection", zap.String("type", o.Type), zap.Error(err))
		}
	})
	defer sess.SetEmitter(nil)

	_ = client.Send(SessionFrame{
		Type:        FrameSession,
		InterviewID: interview.ID,
		Start:       agents.RoleCoordinator,
		Agents:      []*agents.Agent{sess.Agent(agents.RoleCoordinator), sess.Agent(agents.RoleBehavioral), sess.Agent(agents.RoleTechnical)},
		State:       sess.State(),
	})

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		var ev agents.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("realtime connection lost", zap.Error(err))
			}
			if sess.State().Phase != agents.PhaseTerminated {
				b.endInBackground(interview)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if ev.Type == agents.EventToolCall {
			b.callTool(r.Context(), client, sess, ev)
			continue
		}

		out, err := sess.HandleEvent(ev)
		if err != nil {
			_ = client.Send(agents.Outbound{Type: agents.FrameError, Content: err.Error()})
			if errors.Is(err, agents.ErrSessionTerminated) {
				return
			}
			continue
		}
		if out.Message != nil {
			b.record(r.Context(), client, interview, out.Message, log)
			continue
		}
		if out.Terminated {
			b.finish(r.Context(), client, interview, log)
			return
		}
	}
}

func (b *Bridge) callTool(ctx context.Context, client *Client, sess *agents.Session, ev agents.Event) {
	content, err := sess.Invoke(ctx, ev.Tool, ev.Args)
	if err != nil {
		_ = client.Send(agents.Outbound{Type: agents.FrameError, Tool: ev.Tool, CallID: ev.CallID, Content: err.Error()})
		return
	}
	_ = client.Send(agents.Outbound{Type: agents.FrameToolResult, Tool: ev.Tool, CallID: ev.CallID, Content: content})
}

// record persists a transcript entry; failures are reported but keep the session open.
func (b *Bridge) record(ctx context.Context, client *Client, interview *models.Interview, msg *models.Message, log *zap.Logger) {
	if _, err := b.lifecycle.RecordMessages(ctx, interview.UserID, interview.ID, []models.Message{*msg}); err != nil {
		log.Warn("transcript message not stored", zap.String("message_id", msg.MessageID), zap.Error(err))
		_ = client.Send(agents.Outbound{Type: agents.FrameError, Content: "message " + msg.MessageID + " was not stored"})
	}
}

// finish ends the interview after the closing confirmation and reports the settlement.
func (b *Bridge) finish(ctx context.Context, client *Client, interview *models.Interview, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.endTimeout)
	defer cancel()
	res, err := b.lifecycle.End(ctx, interview.UserID, interview.ID)
	if err != nil {
		log.Error("end after closing failed", zap.Error(err))
		_ = client.Send(agents.Outbound{Type: agents.FrameError, Content: "interview could not be closed, it will be settled automatically"})
		return
	}
	_ = client.Send(agents.Outbound{Type: agents.FrameInterviewEnded, Payload: res})
	_ = client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "interview ended"), time.Now().Add(writeWait))
}

// endInBackground fires End without waiting; End is idempotent so a duplicate from the
// client's own unload signal is harmless.
func (b *Bridge) endInBackground(interview *models.Interview) {
	userID, interviewID := interview.UserID, interview.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.endTimeout)
		defer cancel()
		res, err := b.lifecycle.End(ctx, userID, interviewID)
		if err != nil {
			b.logger.Warn("best-effort end after disconnect failed",
				zap.String("interview_id", interviewID), zap.Error(err))
			return
		}
		b.logger.Info("interview ended after disconnect",
			zap.String("interview_id", interviewID),
			zap.Int64("tokens_used", res.TokensUsed),
			zap.Bool("already_ended", res.AlreadyEnded))
	}()
}
