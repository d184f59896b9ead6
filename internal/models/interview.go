package models

import "time"

// Interview is one mock-interview session and its billing state.
// TokensDeducted, TokensUsed and a terminal Status are always set together.
type Interview struct {
	ID                string             `gorm:"primaryKey;size:64" json:"id"`
	UserID            string             `gorm:"size:64;not null;index" json:"userId"`
	Mode              Mode               `gorm:"size:16;not null" json:"mode"`
	Status            InterviewStatus    `gorm:"size:16;not null;index" json:"status"`
	CreatedAt         time.Time          `gorm:"not null;index" json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
	EndedAt           *time.Time         `json:"endedAt,omitempty"`
	TokensPrepaid     int64              `gorm:"not null" json:"tokensPrepaid"`
	TokensUsed        *int64             `json:"tokensUsed,omitempty"`
	TokensDeducted    bool               `gorm:"not null;default:false" json:"tokensDeducted"`
	BalanceAfter      *int64             `json:"balanceAfter,omitempty"`
	Feedback          *InterviewFeedback `gorm:"serializer:json" json:"feedback,omitempty"`
	Code              string             `gorm:"type:text" json:"code"`
	Language          string             `gorm:"size:32" json:"language,omitempty"`
	ProblemAttemptIDs []string           `gorm:"serializer:json" json:"problemAttemptIds"`
	Messages          []Message          `gorm:"foreignKey:InterviewID;references:ID;constraint:OnDelete:CASCADE" json:"messages"`
}

// Message is one transcript entry. MessageID is the client's stable identifier and
// the de-duplication key; Created orders the transcript.
type Message struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	InterviewID string `gorm:"size:64;not null;uniqueIndex:idx_interview_message" json:"-"`
	MessageID   string `gorm:"size:128;not null;uniqueIndex:idx_interview_message" json:"id"`
	Role        string `gorm:"size:16;not null" json:"role"`
	Agent       string `gorm:"size:32" json:"agent,omitempty"`
	Content     string `gorm:"type:text" json:"content"`
	Created     int64  `gorm:"not null;index" json:"created"`
}

func (Message) TableName() string { return "interview_messages" }

// ProblemAttempt tracks one technical question presented during an interview.
type ProblemAttempt struct {
	ID          string             `gorm:"primaryKey;size:64" json:"id"`
	InterviewID string             `gorm:"size:64;not null;index" json:"interviewId"`
	QuestionID  string             `gorm:"size:64" json:"questionId"`
	StartedAt   time.Time          `json:"startedAt"`
	Language    string             `gorm:"size:32" json:"language"`
	Version     string             `gorm:"size:32" json:"version"`
	Feedback    *TechnicalFeedback `gorm:"serializer:json" json:"feedback,omitempty"`
	Submissions []Submission       `gorm:"serializer:json" json:"submissions"`
}

type Submission struct {
	SubmittedAt time.Time `json:"submittedAt"`
	UserCode    string    `json:"userCode"`
	Stdout      string    `json:"stdout"`
	Stderr      string    `json:"stderr"`
}

// Passed treats an empty stderr as a passing run.
func (s Submission) Passed() bool {
	return len(s.Stderr) == 0
}
