package serrors

import (
	"errors"
	"fmt"
)

// Kind sentinels. Service errors wrap exactly one of these so callers can
// branch with errors.Is and controllers can map to a client-facing status
// (not found → 404, conflict → 409, validation → 400).
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation")
)

// Error is a coded service error. Message always names the offending id or
// key to aid support diagnosis.
type Error struct {
	kind    error
	Code    string
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == e.kind
}

func (e *Error) Unwrap() error {
	return e.kind
}

func NewNotFound(code, format string, args ...any) *Error {
	return &Error{kind: ErrNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewConflict(code, format string, args ...any) *Error {
	return &Error{kind: ErrConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewValidation(code, field, format string, args ...any) *Error {
	return &Error{kind: ErrValidation, Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewFieldRequiredError is the common validation case: a required field is
// absent from the request.
func NewFieldRequiredError(field string) *Error {
	return NewValidation("FIELD_REQUIRED", field, "%s is required", field)
}
