package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InterviewPatch carries the optional fields a save may change. Nil fields are left alone.
type InterviewPatch struct {
	Code          *string
	Language      *string
	Feedback      *models.InterviewFeedback
	AddAttemptIDs []string
}

// Finalization is the terminal state written when billing is settled.
type Finalization struct {
	Status     models.InterviewStatus
	TokensUsed int64
	EndedAt    time.Time
}

// Settle computes the terminal state of an interview. It may mutate user (balance, XP,
// interview ids); those changes are written in the same transaction as the claim.
type Settle func(interview *models.Interview, user *models.User) (Finalization, error)

func (s *Store) CreateInterview(ctx context.Context, interview *models.Interview) error {
	return classify("create interview", s.DB.WithContext(ctx).Omit(clause.Associations).Create(interview).Error)
}

// GetInterview loads an interview with its transcript ordered by created.
func (s *Store) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	var interview models.Interview
	err := s.DB.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created ASC").Order("id ASC")
		}).
		First(&interview, "id = ?", id).Error
	if err != nil {
		return nil, classify("get interview", err)
	}
	return &interview, nil
}

// ListInterviewsByUser returns the user's interviews newest first, without transcripts.
func (s *Store) ListInterviewsByUser(ctx context.Context, userID string, limit int) ([]models.Interview, error) {
	var interviews []models.Interview
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&interviews).Error; err != nil {
		return nil, classify("list interviews", err)
	}
	return interviews, nil
}

// ListStaleActive returns active interviews created before the cutoff, oldest first.
func (s *Store) ListStaleActive(ctx context.Context, before time.Time, limit int) ([]models.Interview, error) {
	var interviews []models.Interview
	q := s.DB.WithContext(ctx).
		Where("status = ? AND tokens_deducted = ? AND created_at < ?", models.StatusActive, false, before).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&interviews).Error; err != nil {
		return nil, classify("list stale interviews", err)
	}
	return interviews, nil
}

// UpdateInterview applies a partial update. Attempt ids are appended without duplicates.
func (s *Store) UpdateInterview(ctx context.Context, id string, patch InterviewPatch) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var interview models.Interview
		if err := tx.First(&interview, "id = ?", id).Error; err != nil {
			return classify("load interview", err)
		}

		columns := []string{"updated_at"}
		if patch.Code != nil {
			interview.Code = *patch.Code
			columns = append(columns, "code")
		}
		if patch.Language != nil {
			interview.Language = *patch.Language
			columns = append(columns, "language")
		}
		if patch.Feedback != nil {
			interview.Feedback = patch.Feedback
			columns = append(columns, "feedback")
		}
		if len(patch.AddAttemptIDs) > 0 {
			interview.ProblemAttemptIDs = appendUnique(interview.ProblemAttemptIDs, patch.AddAttemptIDs...)
			columns = append(columns, "problem_attempt_ids")
		}
		if len(columns) == 1 {
			return nil
		}
		interview.UpdatedAt = time.Now()
		return classify("update interview", tx.Model(&interview).Select(columns).Updates(&interview).Error)
	})
	return classify("update interview", err)
}

// AppendMessages inserts transcript messages, ignoring ones whose id was already stored.
// It returns the number of newly stored messages.
func (s *Store) AppendMessages(ctx context.Context, interviewID string, messages []models.Message) (int64, error) {
	if len(messages) == 0 {
		return 0, nil
	}
	rows := make([]models.Message, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		if _, dup := seen[m.MessageID]; dup {
			continue
		}
		seen[m.MessageID] = struct{}{}
		m.ID = 0
		m.InterviewID = interviewID
		rows = append(rows, m)
	}
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "interview_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, classify("append messages", res.Error)
	}
	return res.RowsAffected, nil
}

// FinalizeInterview settles billing exactly once. In one transaction it claims the
// interview (tokens_deducted false -> true) and writes the user through the version CAS.
// If the interview was already settled it returns the stored record and ErrAlreadyFinalized.
func (s *Store) FinalizeInterview(ctx context.Context, id string, settle Settle) (*models.Interview, *models.User, error) {
	var (
		outInterview *models.Interview
		outUser      *models.User
		settled      *models.Interview
	)
	err := s.retry(ctx, func(tx *gorm.DB) error {
		var interview models.Interview
		if err := tx.First(&interview, "id = ?", id).Error; err != nil {
			return classify("load interview", err)
		}
		if interview.TokensDeducted {
			settled = &interview
			return ErrAlreadyFinalized
		}
		user, err := loadUser(tx, interview.UserID)
		if err != nil {
			return err
		}

		fin, err := settle(&interview, user)
		if err != nil {
			return err
		}

		balance := user.Tokens
		used := fin.TokensUsed
		ended := fin.EndedAt
		claim := tx.Model(&models.Interview{}).
			Where("id = ? AND tokens_deducted = ?", id, false).
			Updates(map[string]any{
				"tokens_deducted": true,
				"tokens_used":     used,
				"balance_after":   balance,
				"status":          fin.Status,
				"ended_at":        ended,
				"updated_at":      time.Now(),
			})
		if claim.Error != nil {
			return classify("claim interview", claim.Error)
		}
		if claim.RowsAffected == 0 {
			if err := tx.First(&interview, "id = ?", id).Error; err != nil {
				return classify("reload interview", err)
			}
			settled = &interview
			return ErrAlreadyFinalized
		}
		if err := casUser(tx, user); err != nil {
			return err
		}

		interview.TokensDeducted = true
		interview.TokensUsed = &used
		interview.BalanceAfter = &balance
		interview.Status = fin.Status
		interview.EndedAt = &ended
		outInterview = &interview
		outUser = user
		return nil
	})
	if errors.Is(err, ErrAlreadyFinalized) {
		return settled, nil, ErrAlreadyFinalized
	}
	if err != nil {
		return nil, nil, err
	}
	return outInterview, outUser, nil
}

// GetProblemAttempt loads a single attempt.
func (s *Store) GetProblemAttempt(ctx context.Context, id string) (*models.ProblemAttempt, error) {
	var attempt models.ProblemAttempt
	if err := s.DB.WithContext(ctx).First(&attempt, "id = ?", id).Error; err != nil {
		return nil, classify("get problem attempt", err)
	}
	return &attempt, nil
}

// UpsertProblemAttempts inserts attempts or overwrites existing ones by id.
func (s *Store) UpsertProblemAttempts(ctx context.Context, interviewID string, attempts []models.ProblemAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	for i := range attempts {
		attempts[i].InterviewID = interviewID
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"question_id", "language", "version", "feedback", "submissions"}),
		}).
		Create(&attempts).Error
	return classify("upsert problem attempts", err)
}

// AppendSubmission adds a code run to an attempt's submission history.
func (s *Store) AppendSubmission(ctx context.Context, attemptID string, sub models.Submission) (*models.ProblemAttempt, error) {
	var out models.ProblemAttempt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", attemptID).Error; err != nil {
			return classify("load problem attempt", err)
		}
		out.Submissions = append(out.Submissions, sub)
		return classify("append submission", tx.Model(&out).Select("submissions").Updates(&out).Error)
	})
	if err != nil {
		return nil, classify("append submission", err)
	}
	return &out, nil
}

func appendUnique(list []string, values ...string) []string {
	present := make(map[string]struct{}, len(list))
	for _, v := range list {
		present[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := present[v]; ok || v == "" {
			continue
		}
		present[v] = struct{}{}
		list = append(list, v)
	}
	return list
}
