package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is returned when an input fails business rule validation
// (e.g. a zero or out-of-range prediction date, or a rejected bot challenge).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ValidationError carries the submitter-facing description of a rejected
// input. It matches ErrValidation in errors.Is checks, and handlers extract
// Message with errors.As regardless of how many layers wrapped the error on
// its way up — no knowledge of wrap prefixes required.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrDuplicateIdentity is returned by the ledger when an identity that already
// holds a live observation attempts to create a second one. Enforced by a
// database uniqueness constraint, never by an application-level
// check-then-insert, so two concurrent creates for the same identity resolve
// to exactly one winner.
// Handlers should map this to HTTP 409 Conflict with a message pointing the
// submitter at their existing update token.
var ErrDuplicateIdentity = errors.New("identity already has a submission")

// ErrTokenNotFound is returned when a revision names an update token that
// matches no live observation.
// Handlers should map this to HTTP 404.
var ErrTokenNotFound = errors.New("no submission for this token")

// ErrVerificationUnavailable is returned by the bot-challenge verifier when
// the external oracle times out or errors. It is never surfaced to the
// submitter: callers fail open, log the occurrence, and admit the write.
var ErrVerificationUnavailable = errors.New("bot verification unavailable")
