package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/models"

	"gorm.io/gorm"
)

const defaultMaxRetries = 5

// userColumns are the columns a balance CAS may write.
var userColumns = []string{"tokens", "xp", "recent_question_ids", "interview_ids", "version", "updated_at"}

// Store is the gorm-backed record store for users, interviews, transcripts and problem attempts.
type Store struct {
	DB         *gorm.DB
	MaxRetries int
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db, MaxRetries: defaultMaxRetries}
}

// AutoMigrate creates or updates the tables backing the store.
func (s *Store) AutoMigrate() error {
	return s.DB.AutoMigrate(&models.User{}, &models.Interview{}, &models.Message{}, &models.ProblemAttempt{})
}

// Ping reports whether the underlying database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return classify("ping", err)
	}
	return classify("ping", sqlDB.PingContext(ctx))
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return classify("create user", s.DB.WithContext(ctx).Create(user).Error)
}

func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, classify("get user", err)
	}
	return &user, nil
}

// GetUserTokens returns the user's current balance.
func (s *Store) GetUserTokens(ctx context.Context, userID string) (int64, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Tokens, nil
}

// SetUserTokens overwrites the balance under the version guard.
func (s *Store) SetUserTokens(ctx context.Context, userID string, balance int64) (*models.User, error) {
	return s.UpdateUser(ctx, userID, func(u *models.User) error {
		u.Tokens = balance
		return nil
	})
}

// UpdateUser applies mutate to a fresh copy of the user and writes it back with a
// compare-and-set on Version. A lost race re-reads and re-applies mutate, up to MaxRetries.
// An error returned by mutate aborts without writing.
func (s *Store) UpdateUser(ctx context.Context, userID string, mutate func(*models.User) error) (*models.User, error) {
	var out *models.User
	err := s.retry(ctx, func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		if err := mutate(user); err != nil {
			return err
		}
		if err := casUser(tx, user); err != nil {
			return err
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddInterviewToUser records interviewID on the user unless already present.
func (s *Store) AddInterviewToUser(ctx context.Context, userID, interviewID string) error {
	_, err := s.UpdateUser(ctx, userID, func(u *models.User) error {
		if !u.HasInterview(interviewID) {
			u.InterviewIDs = append(u.InterviewIDs, interviewID)
		}
		return nil
	})
	return err
}

// TopUsersByXP returns users ranked by XP, highest first.
func (s *Store) TopUsersByXP(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	var users []models.User
	q := s.DB.WithContext(ctx).Select("id", "username", "xp").Order("xp DESC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, classify("top users", err)
	}
	entries := make([]models.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, models.LeaderboardEntry{Rank: i + 1, UserID: u.ID, Username: u.Username, XP: u.XP})
	}
	return entries, nil
}

// retry runs fn in a transaction, restarting it while the user CAS loses.
// Errors returned by fn pass through untouched; begin/commit failures are classified.
func (s *Store) retry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	attempts := s.MaxRetries
	if attempts <= 0 {
		attempts = defaultMaxRetries
	}
	for i := 0; i < attempts; i++ {
		var fnErr error
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			fnErr = fn(tx)
			return fnErr
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errVersionConflict):
			if ctx.Err() != nil {
				return classify("transaction", ctx.Err())
			}
			continue
		case err == fnErr:
			return err
		default:
			return classify("transaction", err)
		}
	}
	return ErrConcurrentUpdate
}

func loadUser(tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		return nil, classify("load user", err)
	}
	return &user, nil
}

func casUser(tx *gorm.DB, user *models.User) error {
	expected := user.Version
	user.Version = expected + 1
	user.UpdatedAt = time.Now()
	res := tx.Model(user).
		Where("version = ?", expected).
		Select(userColumns).
		Updates(user)
	if res.Error != nil {
		user.Version = expected
		return classify("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		user.Version = expected
		return errVersionConflict
	}
	return nil
}
