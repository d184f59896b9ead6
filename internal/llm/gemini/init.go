package gemini

import "github.com/JGenereux/ai-interviewer/internal/llm"

// Register Gemini provider on package import
func init() {
	llm.RegisterProvider("gemini", func(cfg llm.Config) (llm.Provider, error) {
		config, err := NewConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewClient(config)
	})
}
