package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/cache"
	"github.com/JGenereux/ai-interviewer/internal/ledger"
	"github.com/JGenereux/ai-interviewer/internal/metrics"
	"github.com/JGenereux/ai-interviewer/internal/models"
	"github.com/JGenereux/ai-interviewer/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store captures the persistence operations the manager needs.
type Store interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateUser(ctx context.Context, userID string, mutate func(*models.User) error) (*models.User, error)
	AddInterviewToUser(ctx context.Context, userID, interviewID string) error
	CreateInterview(ctx context.Context, interview *models.Interview) error
	GetInterview(ctx context.Context, id string) (*models.Interview, error)
	UpdateInterview(ctx context.Context, id string, patch repositories.InterviewPatch) error
	ListInterviewsByUser(ctx context.Context, userID string, limit int) ([]models.Interview, error)
	ListStaleActive(ctx context.Context, before time.Time, limit int) ([]models.Interview, error)
	AppendMessages(ctx context.Context, interviewID string, messages []models.Message) (int64, error)
	UpsertProblemAttempts(ctx context.Context, interviewID string, attempts []models.ProblemAttempt) error
	GetProblemAttempt(ctx context.Context, id string) (*models.ProblemAttempt, error)
	AppendSubmission(ctx context.Context, attemptID string, sub models.Submission) (*models.ProblemAttempt, error)
	FinalizeInterview(ctx context.Context, id string, settle repositories.Settle) (*models.Interview, *models.User, error)
}

// Invalidator drops cached projections after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

type Config struct {
	MinTokensRequired int64
	Rate              ledger.Rate
	AbandonAfter      time.Duration
	SweepBatchSize    int
	XPPerMinute       int64
	MaxXPPerInterview int64
}

func DefaultConfig() Config {
	return Config{
		MinTokensRequired: 750,
		Rate:              ledger.DefaultRate,
		AbandonAfter:      60 * time.Minute,
		SweepBatchSize:    100,
		XPPerMinute:       10,
		MaxXPPerInterview: 600,
	}
}

type Manager struct {
	store  Store
	cache  Invalidator
	runner CodeRunner
	cfg    Config
	logger *zap.Logger
	locks  *keyedMutex

	now   func() time.Time
	newID func() string
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithIDGenerator(fn func() string) Option { return func(m *Manager) { m.newID = fn } }

func WithCodeRunner(r CodeRunner) Option { return func(m *Manager) { m.runner = r } }

func NewManager(store Store, inv Invalidator, cfg Config, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.MinTokensRequired <= 0 {
		cfg.MinTokensRequired = def.MinTokensRequired
	}
	if cfg.Rate.Tokens <= 0 || cfg.Rate.Per <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.AbandonAfter <= 0 {
		cfg.AbandonAfter = def.AbandonAfter
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = def.SweepBatchSize
	}
	m := &Manager{
		store:  store,
		cache:  inv,
		cfg:    cfg,
		logger: logger,
		locks:  newKeyedMutex(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type StartResult struct {
	InterviewID   string      `json:"interviewId"`
	Mode          models.Mode `json:"mode"`
	TokensPrepaid int64       `json:"tokensPrepaid"`
	NewBalance    int64       `json:"newBalance"`
}

type SaveInput struct {
	Messages        []models.Message
	Code            *string
	Language        *string
	Feedback        *models.InterviewFeedback
	ProblemAttempts []models.ProblemAttempt
}

type SaveResult struct {
	InterviewID    string `json:"interviewId"`
	TokensUsed     int64  `json:"tokensUsed"`
	NewBalance     int64  `json:"newBalance"`
	MessagesStored int64  `json:"messagesStored"`
}

type EndResult struct {
	InterviewID   string `json:"interviewId"`
	TokensUsed    int64  `json:"tokensUsed"`
	TokensPrepaid int64  `json:"tokensPrepaid"`
	// Difference is prepaid minus used: positive was refunded, negative was charged extra.
	Difference   int64 `json:"difference"`
	NewBalance   int64 `json:"newBalance"`
	AlreadyEnded bool  `json:"alreadyEnded"`
}

type SweepResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Start reserves the minimum balance and opens an interview. The reservation is
// written before the interview row; if the row cannot be created the debit is refunded.
func (m *Manager) Start(ctx context.Context, userID string, mode models.Mode) (*StartResult, error) {
	const op = "start interview"
	if !mode.Valid() {
		return nil, newError(KindValidation, op, "mode must be one of: full, behavioral, technical", nil)
	}

	unlock := m.locks.Lock(userID)
	defer unlock()

	required := m.cfg.MinTokensRequired
	var insufficient *Error
	user, err := m.store.UpdateUser(ctx, userID, func(u *models.User) error {
		res, err := ledger.Reserve(u.Tokens, required)
		if err != nil {
			insufficient = newError(KindInsufficientTokens, op,
				fmt.Sprintf("balance %d is below the %d tokens required to start", u.Tokens, required), err)
			return insufficient
		}
		u.Tokens = res.NewBalance
		return nil
	})
	if insufficient != nil {
		return nil, insufficient
	}
	if err != nil {
		return nil, fromStore(op, "user", err)
	}
	m.invalidateUser(ctx, userID)

	now := m.now()
	interview := &models.Interview{
		ID:            m.newID(),
		UserID:        userID,
		Mode:          mode,
		Status:        models.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
		TokensPrepaid: required,
	}
	if err := m.store.CreateInterview(ctx, interview); err != nil {
		m.compensate(userID, required, err)
		return nil, newError(KindUnavailable, op, "could not create interview, reservation refunded", err)
	}

	metrics.InterviewStarted(string(mode))
	m.logger.Info("interview started",
		zap.String("interview_id", interview.ID),
		zap.String("user_id", userID),
		zap.String("mode", string(mode)),
		zap.Int64("tokens_prepaid", required),
		zap.Int64("balance", user.Tokens),
	)
	return &StartResult{
		InterviewID:   interview.ID,
		Mode:          mode,
		TokensPrepaid: required,
		NewBalance:    user.Tokens,
	}, nil
}

// compensate refunds a reservation whose interview row was never created. It runs on a
// fresh context so a cancelled request cannot leave the debit behind.
func (m *Manager) compensate(userID string, amount int64, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := m.store.UpdateUser(ctx, userID, func(u *models.User) error {
		u.Tokens = ledger.Refund(u.Tokens, amount)
		return nil
	})
	if err != nil {
		m.logger.Error("reservation refund failed, balance needs manual repair",
			zap.String("user_id", userID),
			zap.Int64("amount", amount),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	m.invalidateUser(ctx, userID)
	metrics.TokensRefunded("compensation", amount)
	m.logger.Warn("reservation refunded after interview creation failed",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.Error(cause),
	)
}

// Save persists transcript, code, feedback and problem attempts. An interview that has
// not been billed yet is finalized as completed.
func (m *Manager) Save(ctx context.Context, userID, interviewID string, in SaveInput) (*SaveResult, error) {
	const op = "save interview"

	interview, err := m.owned(ctx, op, userID, interviewID)
	if err != nil {
		return nil, err
	}
	if in.Feedback != nil {
		if err := in.Feedback.Validate(interview.Mode); err != nil {
			return nil, newError(KindValidation, op, "feedback does not match the interview mode", err)
		}
	}
	for _, a := range in.ProblemAttempts {
		if a.Feedback != nil {
			if err := a.Feedback.Validate(); err != nil {
				return nil, newError(KindValidation, op, "problem attempt "+a.ID+" has invalid feedback", err)
			}
		}
	}

	unlock := m.locks.Lock(userID)
	defer unlock()

	stored, err := m.store.AppendMessages(ctx, interviewID, in.Messages)
	if err != nil {
		return nil, fromStore(op, "interview", err)
	}
	if err := m.store.UpsertProblemAttempts(ctx, interviewID, in.ProblemAttempts); err != nil {
		return nil, fromStore(op, "problem attempt", err)
	}
	patch := repositories.InterviewPatch{Code: in.Code, Language: in.Language, Feedback: in.Feedback}
	for _, a := range in.ProblemAttempts {
		patch.AddAttemptIDs = append(patch.AddAttemptIDs, a.ID)
	}
	if err := m.store.UpdateInterview(ctx, interviewID, patch); err != nil {
		return nil, fromStore(op, "interview", err)
	}
	if err := m.store.AddInterviewToUser(ctx, userID, interviewID); err != nil {
		return nil, fromStore(op, "user", err)
	}

	settled, _, err := m.finalize(ctx, op, interview)
	if err != nil {
		return nil, err
	}
	m.invalidateUser(ctx, userID)
	return &SaveResult{
		InterviewID:    interviewID,
		TokensUsed:     deref(settled.TokensUsed),
		NewBalance:     deref(settled.BalanceAfter),
		MessagesStored: stored,
	}, nil
}

// End closes an interview and settles billing. Calling it again returns the stored
// result without touching the balance.
func (m *Manager) End(ctx context.Context, userID, interviewID string) (*EndResult, error) {
	const op = "end interview"

	interview, err := m.owned(ctx, op, userID, interviewID)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(userID)
	defer unlock()

	settled, fresh, err := m.finalize(ctx, op, interview)
	if err != nil {
		return nil, err
	}
	if !fresh {
		if err := m.store.AddInterviewToUser(ctx, userID, interviewID); err != nil {
			m.logger.Warn("could not record interview on user during end replay",
				zap.String("interview_id", interviewID), zap.Error(err))
		}
	}
	m.invalidateUser(ctx, userID)

	used := deref(settled.TokensUsed)
	return &EndResult{
		InterviewID:   interviewID,
		TokensUsed:    used,
		TokensPrepaid: settled.TokensPrepaid,
		Difference:    settled.TokensPrepaid - used,
		NewBalance:    deref(settled.BalanceAfter),
		AlreadyEnded:  !fresh,
	}, nil
}

// SweepAbandoned finalizes active interviews older than AbandonAfter, charging at most
// what was prepaid. One failing row never stops the rest.
func (m *Manager) SweepAbandoned(ctx context.Context) (*SweepResult, error) {
	const op = "sweep abandoned"
	result := &SweepResult{}
	cutoff := m.now().Add(-m.cfg.AbandonAfter)
	failed := make(map[string]struct{})

	for {
		batch, err := m.store.ListStaleActive(ctx, cutoff, m.cfg.SweepBatchSize)
		if err != nil {
			if result.Processed > 0 || result.Failed > 0 {
				m.logger.Error("sweep stopped early", zap.Error(err), zap.Int("processed", result.Processed))
				return result, nil
			}
			return nil, fromStore(op, "interview", err)
		}

		progressed := false
		for i := range batch {
			iv := &batch[i]
			if _, seen := failed[iv.ID]; seen {
				continue
			}
			if ctx.Err() != nil {
				return result, nil
			}
			switch err := m.abandon(ctx, iv); {
			case err == nil:
				result.Processed++
				progressed = true
			case errors.Is(err, repositories.ErrAlreadyFinalized):
				result.Skipped++
				progressed = true
			default:
				result.Failed++
				failed[iv.ID] = struct{}{}
				metrics.SweepFailed()
				m.logger.Error("failed to abandon interview",
					zap.String("interview_id", iv.ID),
					zap.String("user_id", iv.UserID),
					zap.Error(err),
				)
			}
		}
		if len(batch) < m.cfg.SweepBatchSize || !progressed {
			break
		}
	}

	m.logger.Info("abandon sweep finished",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (m *Manager) abandon(ctx context.Context, iv *models.Interview) error {
	unlock := m.locks.Lock(iv.UserID)
	defer unlock()

	now := m.now()
	settled, _, err := m.store.FinalizeInterview(ctx, iv.ID, func(interview *models.Interview, user *models.User) (repositories.Finalization, error) {
		used := ledger.CappedUsage(interview.CreatedAt, now, m.cfg.Rate, interview.TokensPrepaid)
		user.Tokens = ledger.TrueUp(user.Tokens, interview.TokensPrepaid, used)
		if !user.HasInterview(interview.ID) {
			user.InterviewIDs = append(user.InterviewIDs, interview.ID)
		}
		return repositories.Finalization{Status: models.StatusAbandoned, TokensUsed: used, EndedAt: now}, nil
	})
	if err != nil {
		return err
	}
	m.invalidateUser(ctx, iv.UserID)

	used := deref(settled.TokensUsed)
	metrics.InterviewFinalized(string(models.StatusAbandoned), used)
	metrics.TokensRefunded("true_up", settled.TokensPrepaid-used)
	m.logger.Info("interview abandoned",
		zap.String("interview_id", iv.ID),
		zap.String("user_id", iv.UserID),
		zap.Int64("tokens_used", used),
		zap.Int64("tokens_prepaid", settled.TokensPrepaid),
		zap.Int64("balance", deref(settled.BalanceAfter)),
	)
	return nil
}

// Get returns an interview owned by userID.
func (m *Manager) Get(ctx context.Context, userID, interviewID string) (*models.Interview, error) {
	return m.owned(ctx, "get interview", userID, interviewID)
}

// List returns the caller's interviews, newest first.
func (m *Manager) List(ctx context.Context, userID string, limit int) ([]models.Interview, error) {
	interviews, err := m.store.ListInterviewsByUser(ctx, userID, limit)
	if err != nil {
		return nil, fromStore("list interviews", "user", err)
	}
	return interviews, nil
}

// finalize settles billing for interview as completed unless it already was. It returns
// the record as stored after settlement and whether this call did the settling.
func (m *Manager) finalize(ctx context.Context, op string, interview *models.Interview) (*models.Interview, bool, error) {
	if interview.TokensDeducted {
		return interview, false, nil
	}
	now := m.now()
	settled, _, err := m.store.FinalizeInterview(ctx, interview.ID, m.settleCompleted(now))
	if errors.Is(err, repositories.ErrAlreadyFinalized) {
		return settled, false, nil
	}
	if err != nil {
		return nil, false, fromStore(op, "interview", err)
	}

	used := deref(settled.TokensUsed)
	metrics.InterviewFinalized(string(settled.Status), used)
	metrics.TokensRefunded("true_up", settled.TokensPrepaid-used)
	m.logger.Info("interview finalized",
		zap.String("op", op),
		zap.String("interview_id", interview.ID),
		zap.String("user_id", interview.UserID),
		zap.String("status", string(settled.Status)),
		zap.Int64("tokens_used", used),
		zap.Int64("tokens_prepaid", settled.TokensPrepaid),
		zap.Int64("balance", deref(settled.BalanceAfter)),
	)
	return settled, true, nil
}

func (m *Manager) settleCompleted(now time.Time) repositories.Settle {
	return func(interview *models.Interview, user *models.User) (repositories.Finalization, error) {
		used := ledger.ComputeUsage(interview.CreatedAt, now, m.cfg.Rate)
		user.Tokens = ledger.TrueUp(user.Tokens, interview.TokensPrepaid, used)
		user.XP += m.xpFor(interview.CreatedAt, now)
		if !user.HasInterview(interview.ID) {
			user.InterviewIDs = append(user.InterviewIDs, interview.ID)
		}
		return repositories.Finalization{Status: models.StatusCompleted, TokensUsed: used, EndedAt: now}, nil
	}
}

// xpFor awards XPPerMinute for every started minute, capped per interview.
func (m *Manager) xpFor(startedAt, now time.Time) int64 {
	elapsed := now.Sub(startedAt)
	if elapsed <= 0 || m.cfg.XPPerMinute <= 0 {
		return 0
	}
	minutes := int64((elapsed + time.Minute - 1) / time.Minute)
	xp := minutes * m.cfg.XPPerMinute
	if m.cfg.MaxXPPerInterview > 0 && xp > m.cfg.MaxXPPerInterview {
		xp = m.cfg.MaxXPPerInterview
	}
	return xp
}

// owned loads an interview and checks it belongs to userID.
func (m *Manager) owned(ctx context.Context, op, userID, interviewID string) (*models.Interview, error) {
	if userID == "" || interviewID == "" {
		return nil, newError(KindValidation, op, "user id and interview id are required", nil)
	}
	interview, err := m.store.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, fromStore(op, "interview", err)
	}
	if interview.UserID != userID {
		return nil, newError(KindForbidden, op, "interview belongs to another user", nil)
	}
	return interview, nil
}

func (m *Manager) invalidateUser(ctx context.Context, userID string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Invalidate(ctx, cache.UserKey(userID), cache.LeaderboardKey); err != nil {
		m.logger.Warn("user cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
