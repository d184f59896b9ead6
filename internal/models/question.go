package models

import (
	"strings"
	"time"
)

type Question struct {
	ID             string            `json:"id" bson:"id"`
	Title          string            `json:"title" bson:"title"`
	Difficulty     Difficulty        `json:"difficulty" bson:"difficulty"`
	TopicTags      []string          `json:"topic_tags,omitempty" bson:"topic_tags,omitempty"`
	PromptMarkdown string            `json:"prompt_markdown" bson:"prompt_markdown"`
	Constraints    string            `json:"constraints,omitempty" bson:"constraints,omitempty"`
	TestCases      []TestCase        `json:"test_cases,omitempty" bson:"test_cases,omitempty"`
	StarterCode    map[string]string `json:"starter_code,omitempty" bson:"starter_code,omitempty"`

	Status    Status    `json:"status,omitempty" bson:"status,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// ParseDifficulty accepts any casing of Easy, Medium or Hard.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, true
	case "medium":
		return Medium, true
	case "hard":
		return Hard, true
	}
	return "", false
}

// status describes lifecycle state of a question; deprecated questions are never served
type Status string

const (
	QuestionActive     Status = "active"
	QuestionDeprecated Status = "deprecated"
)

type TestCase struct {
	Input       string `json:"input" bson:"input"`
	Output      string `json:"output" bson:"output"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// QuestionContext is the slice of a question handed to prompts and tools.
type QuestionContext struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	PromptMarkdown string   `json:"prompt_markdown"`
	Difficulty     string   `json:"difficulty"`
	TopicTags      []string `json:"topic_tags"`
	Constraints    string   `json:"constraints,omitempty"`
}

func (q *Question) Context() *QuestionContext {
	return &QuestionContext{
		ID:             q.ID,
		Title:          q.Title,
		PromptMarkdown: q.PromptMarkdown,
		Difficulty:     string(q.Difficulty),
		TopicTags:      q.TopicTags,
		Constraints:    q.Constraints,
	}
}
