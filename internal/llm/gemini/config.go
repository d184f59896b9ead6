package gemini

import (
	"errors"

	"github.com/JGenereux/ai-interviewer/internal/llm"
)

const (
	defaultModel         = "gemini-2.5-flash"
	defaultMaxImageBytes = 4 << 20
)

// holds Gemini-specific configuration
type Config struct {
	APIKey        string
	Model         string
	MaxImageBytes int
	// BaseURL overrides the API endpoint; used by tests.
	BaseURL string
}

func NewConfig(cfg llm.Config) (*Config, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxImage := cfg.MaxImageBytes
	if maxImage <= 0 {
		maxImage = defaultMaxImageBytes
	}
	return &Config{APIKey: cfg.APIKey, Model: model, MaxImageBytes: maxImage}, nil
}
