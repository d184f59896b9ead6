package models

// uniform error responses
type ErrorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Details []ValidationErrorDetail `json:"details,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// single field validation error
type ValidationErrorDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type RunCodeResponse struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Passed    bool   `json:"passed"`
	AttemptID string `json:"attemptId,omitempty"`
}

type HintResponse struct {
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Snippet   string `json:"snippet"`
}

type WhiteboardResponse struct {
	Interpretation string `json:"interpretation"`
}

type ProfileResponse struct {
	ID                string           `json:"id"`
	Username          string           `json:"username"`
	Tokens            int64            `json:"tokens"`
	SubscriptionTier  SubscriptionTier `json:"subscriptionTier"`
	XP                int64            `json:"xp"`
	RecentQuestionIDs []string         `json:"recentQuestionIds"`
	InterviewCount    int              `json:"interviewCount"`
}

type QuestionResponse struct {
	Question  *Question `json:"question"`
	AttemptID string    `json:"attemptId"`
	Repeated  bool      `json:"repeated"`
}
