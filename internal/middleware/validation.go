package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/JGenereux/ai-interviewer/internal/models"
	"github.com/JGenereux/ai-interviewer/internal/utils"
)

type contextKey string

const validatedRequestKey contextKey = "validated_request"

type Validator interface {
	Validate() error
}

// ValidateRequest decodes the JSON body into a fresh T, runs its Validate method and stores
// it in the request context for the handler.
func ValidateRequest[T Validator]() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := newRequest[T]()
			if err := json.NewDecoder(r.Body).Decode(req); err != nil {
				writeDecodeError(w, err)
				return
			}
			if err := req.Validate(); err != nil {
				utils.JSON(w, http.StatusBadRequest, asErrorResponse(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), validatedRequestKey, req)))
		})
	}
}

// newRequest allocates the value behind T, which is normally a pointer type.
func newRequest[T any]() T {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface().(T)
	}
	return reflect.New(t).Interface().(T)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		utils.JSON(w, http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Code:    "payload_too_large",
			Message: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
		})
		return
	}
	utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
		Code:    "invalid_json",
		Message: "Invalid JSON in request body",
	})
}

// asErrorResponse keeps structured validation errors and wraps plain ones.
func asErrorResponse(err error) models.ErrorResponse {
	var resp *models.ErrorResponse
	if errors.As(err, &resp) {
		return *resp
	}
	return models.ErrorResponse{Code: "validation_error", Message: err.Error()}
}

// GetValidatedRequest retrieves the validated request from context
func GetValidatedRequest[T any](r *http.Request) T {
	return r.Context().Value(validatedRequestKey).(T)
}

// LimitBody caps request bodies at n bytes.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
