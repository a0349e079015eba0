package rsvp

import (
	"errors"
	"fmt"

	"wedding-rsvp/internal/models"
)

// Kind classifies every failure the session can observe. Transport errors
// are converted to one of these at the backend boundary.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindInvalidResponse
	KindValidation
	KindConflict
	KindDeadline
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindInvalidResponse:
		return "invalid_response"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindDeadline:
		return "deadline"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

var (
	ErrIncompleteAnswers = errors.New("every member needs an answer")
	ErrStatusPending     = errors.New("previous confirmation still being checked")
	ErrAlreadyConfirmed  = errors.New("rsvp already confirmed")
	ErrDeadlinePassed    = errors.New("rsvp deadline passed")
	ErrNotEditable       = errors.New("rsvp is not editable")
)

// Error is a classified RSVP failure.
type Error struct {
	Kind Kind
	Op   string
	// Message is an optional human-readable text from the backend.
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not classified.
func KindOf(err error) Kind {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return KindConflict
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// ConflictError reports that another submission for the token landed first.
// Status is the winner's row, when the backend sent it.
type ConflictError struct {
	Status *models.RawStatus
}

func (e *ConflictError) Error() string {
	if e.Status == nil {
		return "rsvp conflict: already confirmed"
	}
	return fmt.Sprintf("rsvp conflict: already confirmed by %q", e.Status.Name)
}

func (e *ConflictError) Unwrap() error { return ErrAlreadyConfirmed }
