package models

import (
	"encoding/base64"
	"fmt"
	"strings"
)

type StartInterviewRequest struct {
	Mode string `json:"mode"`
}

// implements the Validator interface
func (r *StartInterviewRequest) Validate() error {
	mode, ok := ParseMode(r.Mode)
	if !ok {
		return &ErrorResponse{
			Code:    "invalid_mode",
			Message: "mode must be one of: full, behavioral, technical",
		}
	}
	r.Mode = string(mode)
	return nil
}

type SaveInterviewRequest struct {
	Messages        []Message          `json:"messages"`
	Code            *string            `json:"code,omitempty"`
	Language        *string            `json:"language,omitempty"`
	Feedback        *InterviewFeedback `json:"feedback,omitempty"`
	ProblemAttempts []ProblemAttempt   `json:"problemAttempts,omitempty"`
}

func (r *SaveInterviewRequest) Validate() error {
	var details []ValidationErrorDetail
	for i, m := range r.Messages {
		if strings.TrimSpace(m.MessageID) == "" {
			details = append(details, ValidationErrorDetail{Field: indexed("messages", i, "id"), Reason: "required"})
		}
		switch m.Role {
		case "user", "assistant", "system":
		default:
			details = append(details, ValidationErrorDetail{Field: indexed("messages", i, "role"), Reason: "must be user, assistant or system"})
		}
		if m.Created <= 0 {
			details = append(details, ValidationErrorDetail{Field: indexed("messages", i, "created"), Reason: "must be a positive timestamp"})
		}
	}
	for i, a := range r.ProblemAttempts {
		if strings.TrimSpace(a.ID) == "" {
			details = append(details, ValidationErrorDetail{Field: indexed("problemAttempts", i, "id"), Reason: "required"})
		}
	}
	if r.Language != nil {
		lang := strings.ToLower(strings.TrimSpace(*r.Language))
		if lang != "" && !SupportedLanguages[lang] {
			details = append(details, ValidationErrorDetail{Field: "language", Reason: "unsupported language"})
		}
		r.Language = &lang
	}
	if len(details) > 0 {
		return &ErrorResponse{Code: "validation_error", Message: "invalid save payload", Details: details}
	}
	return nil
}

type RunCodeRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Code     string `json:"code"`
}

func (r *RunCodeRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return &ErrorResponse{Code: "missing_code", Message: "Code field is required"}
	}
	r.Language = strings.ToLower(strings.TrimSpace(r.Language))
	if r.Language == "" {
		return &ErrorResponse{Code: "missing_language", Message: "Language field is required"}
	}
	if !SupportedLanguages[r.Language] {
		return &ErrorResponse{
			Code:    "unsupported_language",
			Message: "Language not supported. Supported languages: " + strings.Join(SupportedLanguagesList(), ", "),
		}
	}
	return nil
}

type HintRequest struct {
	Code               string `json:"code"`
	ProblemDescription string `json:"problemDescription"`
}

func (r *HintRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return &ErrorResponse{Code: "missing_code", Message: "Code field is required"}
	}
	if strings.TrimSpace(r.ProblemDescription) == "" {
		return &ErrorResponse{Code: "missing_problem", Message: "problemDescription is required"}
	}
	return nil
}

type WhiteboardRequest struct {
	Image    string `json:"image"` // base64, optionally a data URL
	MimeType string `json:"mimeType"`

	decoded []byte
}

func (r *WhiteboardRequest) Validate() error {
	raw := strings.TrimSpace(r.Image)
	if raw == "" {
		return &ErrorResponse{Code: "missing_image", Message: "image is required"}
	}
	if strings.HasPrefix(raw, "data:") {
		header, body, ok := strings.Cut(raw, ",")
		if !ok {
			return &ErrorResponse{Code: "invalid_image", Message: "malformed data URL"}
		}
		if r.MimeType == "" {
			r.MimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		raw = body
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return &ErrorResponse{Code: "invalid_image", Message: "image must be base64 encoded"}
	}
	if r.MimeType == "" {
		r.MimeType = "image/png"
	}
	r.decoded = data
	return nil
}

// Bytes returns the decoded image; only valid after Validate succeeded.
func (r *WhiteboardRequest) Bytes() []byte {
	return r.decoded
}

func indexed(field string, i int, sub string) string {
	return fmt.Sprintf("%s[%d].%s", field, i, sub)
}
