package questions

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/cache"
	"github.com/JGenereux/ai-interviewer/internal/models"

	"go.uber.org/zap"
)

// Pool is the source of truth for questions.
type Pool interface {
	ListActive(ctx context.Context, difficulty models.Difficulty) ([]models.Question, error)
	GetByID(ctx context.Context, id string) (*models.Question, error)
}

// UserUpdater persists the recent-question window.
type UserUpdater interface {
	UpdateUser(ctx context.Context, userID string, mutate func(*models.User) error) (*models.User, error)
}

type Service struct {
	pool   Pool
	users  UserUpdater
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Service)

// WithRand makes selection deterministic in tests.
func WithRand(r *rand.Rand) Option { return func(s *Service) { s.rng = r } }

func NewService(pool Pool, users UserUpdater, c *cache.Cache, ttl time.Duration, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		pool:   pool,
		users:  users,
		cache:  c,
		ttl:    ttl,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next selects a question the user has not seen in their recent window and records it.
// The pick and the recent-list update happen against the same fresh user read, so two
// concurrent calls cannot both skip the write.
func (s *Service) Next(ctx context.Context, userID string, difficulty models.Difficulty) (*models.Question, bool, error) {
	pool, err := cache.GetOrLoad(ctx, s.cache, cache.QuestionsKey(string(difficulty)), s.ttl,
		func(ctx context.Context) ([]models.Question, error) {
			return s.pool.ListActive(ctx, difficulty)
		})
	if err != nil {
		return nil, false, fmt.Errorf("load question pool: %w", err)
	}

	var (
		chosen   models.Question
		repeated bool
	)
	_, err = s.users.UpdateUser(ctx, userID, func(u *models.User) error {
		q, rep, err := Pick(pool, u.RecentQuestionIDs, s.intn)
		if err != nil {
			return err
		}
		chosen, repeated = q, rep
		u.RecentQuestionIDs = PushRecent(u.RecentQuestionIDs, q.ID)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPoolEmpty) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("record question selection: %w", err)
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("user cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}

	s.logger.Info("question selected",
		zap.String("user_id", userID),
		zap.String("question_id", chosen.ID),
		zap.String("difficulty", string(difficulty)),
		zap.Bool("repeated", repeated),
		zap.Int("pool_size", len(pool)),
	)
	return &chosen, repeated, nil
}

// Get returns a single question by id, bypassing the pool cache.
func (s *Service) Get(ctx context.Context, id string) (*models.Question, error) {
	return s.pool.GetByID(ctx, id)
}

func (s *Service) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
