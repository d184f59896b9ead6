package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JGenereux/ai-interviewer/internal/llm"

	"google.golang.org/genai"
)

const providerName = "gemini"

// Client represents a Gemini LLM client
type Client struct {
	client *genai.Client
	config *Config
}

func NewClient(config *Config) (*Client, error) {
	return newClient(config, nil)
}

func newClient(config *Config, httpClient *http.Client) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL, APIVersion: "v1beta"}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}
	return &Client{client: client, config: config}, nil
}

// GenerateStructured asks for a JSON response constrained by req.Schema.
func (c *Client) GenerateStructured(ctx context.Context, req llm.StructuredRequest) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(req.Schema),
		Temperature:      req.Temperature,
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, classifyError(err, "Failed to generate structured content")
	}
	text, err := responseText(result)
	if err != nil {
		return nil, err
	}
	return []byte(stripFences(text)), nil
}

// InterpretImage describes an image. Images above MaxImageBytes, or ones the API
// rejects for size, fail with a payload-too-large provider error.
func (c *Client) InterpretImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeInvalidInput, Message: "image is empty"}
	}
	if c.config.MaxImageBytes > 0 && len(image) > c.config.MaxImageBytes {
		return "", &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodePayloadTooLarge,
			Message:  fmt.Sprintf("image is %d bytes, limit is %d", len(image), c.config.MaxImageBytes),
		}
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	}}
	result, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, nil)
	if err != nil {
		return "", classifyError(err, "Failed to interpret image")
	}
	return responseText(result)
}

func (c *Client) GetProviderName() string {
	return providerName
}

// responseText joins the text parts of the first candidate, skipping thoughts.
func responseText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeEmptyResponse, Message: "No response generated"}
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &llm.ProviderError{Provider: providerName, Code: llm.ErrCodeEmptyResponse, Message: "Empty response generated"}
	}
	return text, nil
}

func classifyError(err error, msg string) error {
	code := llm.ErrCodeServiceDown
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = llm.ErrCodeTimeout
	case isPayloadTooLarge(err):
		code = llm.ErrCodePayloadTooLarge
	case isRateLimitError(err):
		code = llm.ErrCodeRateLimit
	}
	return &llm.ProviderError{Provider: providerName, Code: code, Message: msg, Err: err}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") || strings.Contains(s, "rate limit") ||
		strings.Contains(s, "resource_exhausted") || strings.Contains(s, "quota")
}

func isPayloadTooLarge(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "413") || strings.Contains(s, "too large") ||
		strings.Contains(s, "request payload size exceeds")
}

// stripFences removes a markdown code fence some models wrap around JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func toGenaiSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func genaiType(t llm.SchemaType) genai.Type {
	switch t {
	case llm.TypeObject:
		return genai.TypeObject
	case llm.TypeArray:
		return genai.TypeArray
	case llm.TypeInteger:
		return genai.TypeInteger
	case llm.TypeNumber:
		return genai.TypeNumber
	case llm.TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
