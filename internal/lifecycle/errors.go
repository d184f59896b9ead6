package lifecycle

import (
	"errors"
	"fmt"

	"github.com/JGenereux/ai-interviewer/internal/repositories"
)

// Kind classifies every failure the manager returns.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindInsufficientTokens Kind = "insufficient_tokens"
	KindConflict           Kind = "conflict"
	KindUnavailable        Kind = "unavailable"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a manager error, or KindUnavailable for anything unclassified.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnavailable
}

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// fromStore classifies a store failure. what names the missing record for not-found.
func fromStore(op, what string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return newError(KindNotFound, op, what+" not found", err)
	case errors.Is(err, repositories.ErrConcurrentUpdate):
		return newError(KindConflict, op, "concurrent update, retry the request", err)
	default:
		return newError(KindUnavailable, op, "store unavailable", err)
	}
}
