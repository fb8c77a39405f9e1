package engine

import "fmt"

// Kind classifies engine errors so the boundary layer can map them to
// responses and callers can pick the right retry strategy.
type Kind int

const (
	// KindValidation marks a missing or out-of-range required field. Nothing
	// was written.
	KindValidation Kind = iota
	// KindDuplicate marks a shift or roll identifier collision. Nothing was
	// written; the caller must resubmit with different keys.
	KindDuplicate
	// KindNotFound marks an operation referencing a session with no draft.
	KindNotFound
	// KindPartialCommit marks a failure after the shift row was written but
	// before all dependent steps completed. A retry resumes linking instead of
	// re-creating the shift.
	KindPartialCommit
	// KindInternal marks a storage failure before any write happened.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindNotFound:
		return "not_found"
	case KindPartialCommit:
		return "partial_commit"
	default:
		return "internal"
	}
}

// Error is the engine's error type. Field is set for validation errors, ID for
// duplicate identifiers, and Step for partial-commit failures.
type Error struct {
	Kind       Kind
	SessionKey string
	Field      string
	ID         string
	Step       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (session %s)", e.Kind, e.Message, e.SessionKey)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(sessionKey, field string) *Error {
	return &Error{
		Kind:       KindValidation,
		SessionKey: sessionKey,
		Field:      field,
		Message:    fmt.Sprintf("required field %q is missing or invalid", field),
	}
}

func duplicateError(sessionKey, id string) *Error {
	return &Error{
		Kind:       KindDuplicate,
		SessionKey: sessionKey,
		ID:         id,
		Message:    fmt.Sprintf("identifier %q already exists", id),
	}
}

func notFoundError(sessionKey string) *Error {
	return &Error{
		Kind:       KindNotFound,
		SessionKey: sessionKey,
		Message:    "no draft exists for this session",
	}
}

func partialCommitError(sessionKey, shiftID, step string, err error) *Error {
	return &Error{
		Kind:       KindPartialCommit,
		SessionKey: sessionKey,
		ID:         shiftID,
		Step:       step,
		Message:    fmt.Sprintf("shift %s was saved but step %q did not complete; retry to resume linking", shiftID, step),
		Err:        err,
	}
}

func internalError(sessionKey string, err error) *Error {
	return &Error{
		Kind:       KindInternal,
		SessionKey: sessionKey,
		Message:    "storage failure",
		Err:        err,
	}
}
