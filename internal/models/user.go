package models

import "time"

// User owns a token balance. Version guards read-modify-write updates of the balance.
type User struct {
	ID                string           `gorm:"primaryKey;size:64" json:"id"`
	Username          string           `gorm:"size:128" json:"username"`
	Tokens            int64            `gorm:"not null;default:0" json:"tokens"`
	SubscriptionTier  SubscriptionTier `gorm:"size:16;not null;default:free" json:"subscriptionTier"`
	XP                int64            `gorm:"not null;default:0;index" json:"xp"`
	RecentQuestionIDs []string         `gorm:"serializer:json" json:"recentQuestionIds"`
	InterviewIDs      []string         `gorm:"serializer:json" json:"interviewIds"`
	Version           int64            `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// HasInterview reports whether id is already recorded on the user.
func (u *User) HasInterview(id string) bool {
	for _, existing := range u.InterviewIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// LeaderboardEntry is the public projection of a user ranked by XP.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	XP       int64  `json:"xp"`
}
