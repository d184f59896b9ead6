package llm

import (
	"context"
	"errors"
)

// Provider is a model backend that can answer with schema-constrained JSON and read images.
type Provider interface {
	// GenerateStructured returns the raw JSON document produced for req.Schema.
	GenerateStructured(ctx context.Context, req StructuredRequest) ([]byte, error)
	// InterpretImage describes an image in free text.
	InterpretImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	GetProviderName() string
}

type StructuredRequest struct {
	SystemInstruction string
	Prompt            string
	Schema            *Schema
	Temperature       *float32
}

// represents an error from an LLM provider
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPayloadTooLarge) match provider errors carrying that code.
func (e *ProviderError) Is(target error) bool {
	return target == ErrPayloadTooLarge && e.Code == ErrCodePayloadTooLarge
}

// ErrPayloadTooLarge marks an input the provider refused because of its size.
var ErrPayloadTooLarge = errors.New("payload too large")

// Common error codes
const (
	ErrCodeAPIKey          = "invalid_api_key"
	ErrCodeRateLimit       = "rate_limit_exceeded"
	ErrCodeServiceDown     = "service_unavailable"
	ErrCodeInvalidInput    = "invalid_input"
	ErrCodeTimeout         = "timeout"
	ErrCodeEmptyResponse   = "empty_response"
	ErrCodePayloadTooLarge = "payload_too_large"
)
