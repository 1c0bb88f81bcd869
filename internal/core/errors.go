package core

import (
	"errors"
	"fmt"
)

// Code classifies an Error so callers can react without matching messages.
type Code string

const (
	CodeValidation Code = "validation"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeBackend    Code = "backend"
	// CodePartial marks a mutation that was committed while a later cascade
	// stage failed; derived state is repaired by reconciliation.
	CodePartial Code = "partial"
)

// Error is the structured error returned by the ledger engine.
type Error struct {
	Code    Code
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on code; a target carrying a message must match it as well.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	if t.Message != "" && t.Message != e.Message {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

var (
	ErrValidation = &Error{Code: CodeValidation}
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrConflict   = &Error{Code: CodeConflict}
	ErrBackend    = &Error{Code: CodeBackend}
	ErrPartial    = &Error{Code: CodePartial}
)

var (
	ErrInvalidAmount       = &Error{Code: CodeValidation, Field: "value", Message: "invalid amount"}
	ErrInvalidType         = &Error{Code: CodeValidation, Field: "type", Message: "type must be income or expense"}
	ErrEmptyName           = &Error{Code: CodeValidation, Field: "name", Message: "empty name"}
	ErrEmptyCategory       = &Error{Code: CodeValidation, Field: "category", Message: "empty category"}
	ErrInvalidDate         = &Error{Code: CodeValidation, Field: "date", Message: "invalid date"}
	ErrEmptyTitle          = &Error{Code: CodeValidation, Field: "title", Message: "empty title"}
	ErrTargetBelowCurrent  = &Error{Code: CodeValidation, Field: "targetValue", Message: "target below current value"}
	ErrUnknownChallenge    = &Error{Code: CodeValidation, Field: "challengeId", Message: "unknown challenge"}
	ErrChallengeNotActive  = &Error{Code: CodeConflict, Message: "challenge is not active"}
	ErrChallengeAccepted   = &Error{Code: CodeConflict, Message: "challenge already accepted"}
	ErrGoalFundingConflict = &Error{Code: CodeConflict, Message: "goal funding exceeds remaining value"}
)

// Validation builds a validation error for a single field.
func Validation(field, message string) error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

// NotFound builds a not-found error naming the missing entity.
func NotFound(entity, id string) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// Backend wraps a persistence or network failure. Errors that are already
// classified pass through unchanged.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: CodeBackend, Message: op, Cause: err}
}

// Partial reports a committed mutation whose derived state is stale.
func Partial(op string, err error) error {
	return &Error{Code: CodePartial, Message: op, Cause: err}
}

// CodeOf returns the classification of err, or CodeBackend for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeBackend
}
