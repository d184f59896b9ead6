package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/cache"
	"github.com/JGenereux/ai-interviewer/internal/middleware"
	"github.com/JGenereux/ai-interviewer/internal/models"
	"github.com/JGenereux/ai-interviewer/internal/utils"

	"go.uber.org/zap"
)

// leaderboardSize is how many entries are cached; requests slice from it.
const leaderboardSize = 100

type UserReader interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	TopUsersByXP(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type UserHandler struct {
	users          UserReader
	cache          *cache.Cache
	profileTTL     time.Duration
	leaderboardTTL time.Duration
	logger         *zap.Logger
}

func NewUserHandler(users UserReader, c *cache.Cache, profileTTL, leaderboardTTL time.Duration, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, cache: c, profileTTL: profileTTL, leaderboardTTL: leaderboardTTL, logger: logger}
}

// MeHandler returns the caller's profile through the read-through cache.
func (h *UserHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	profile, err := cache.GetOrLoad(r.Context(), h.cache, cache.UserKey(userID), h.profileTTL,
		func(ctx context.Context) (models.ProfileResponse, error) {
			u, err := h.users.GetUser(ctx, userID)
			if err != nil {
				return models.ProfileResponse{}, err
			}
			recent := u.RecentQuestionIDs
			if recent == nil {
				recent = []string{}
			}
			return models.ProfileResponse{
				ID:                u.ID,
				Username:          u.Username,
				Tokens:            u.Tokens,
				SubscriptionTier:  u.SubscriptionTier,
				XP:                u.XP,
				RecentQuestionIDs: recent,
				InterviewCount:    len(u.InterviewIDs),
			}, nil
		})
	if err != nil {
		writeError(w, h.logger, err, zap.String("user_id", userID))
		return
	}
	utils.JSON(w, http.StatusOK, profile)
}

func (h *UserHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{Code: "invalid_limit", Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, leaderboardSize)
	}

	board, err := cache.GetOrLoad(r.Context(), h.cache, cache.LeaderboardKey, h.leaderboardTTL,
		func(ctx context.Context) ([]models.LeaderboardEntry, error) {
			return h.users.TopUsersByXP(ctx, leaderboardSize)
		})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(board) > limit {
		board = board[:limit]
	}
	if board == nil {
		board = []models.LeaderboardEntry{}
	}
	utils.JSON(w, http.StatusOK, board)
}
