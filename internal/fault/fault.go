package fault

import (
	"errors"
	"fmt"
)

var ErrNotImplemented = errors.New("not implemented")

// FormatError reports bytes that do not describe a well-formed ELF structure.
type FormatError struct {
	Offset int64
	Reason string
	Err    error
}

// NoSuchFieldError reports a field name that the view does not define.
type NoSuchFieldError struct {
	View  string
	Field string
}

type NotFoundError struct {
	What string
	Err  error
}

// PreconditionError reports a call whose arguments violate the operation's contract.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *FormatError) Error() string {
	msg := "malformed ELF: " + e.Reason
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s (offset 0x%X)", msg, e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *NoSuchFieldError) Error() string {
	return fmt.Sprintf("'%s' has no field '%s'", e.View, e.Field)
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s not found: %v", e.What, e.Err)
	}
	return e.What + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func Format(off int64, format string, args ...any) error {
	return &FormatError{Offset: off, Reason: fmt.Sprintf(format, args...)}
}

func Precondition(op, format string, args ...any) error {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func NotFound(what string) error {
	return &NotFoundError{What: what}
}
