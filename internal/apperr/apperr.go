package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindValidation Kind = "validation"
	KindForbidden  Kind = "forbidden"
	KindNotFound   Kind = "not_found"
	KindTransient  Kind = "transient"
	KindConflict   Kind = "conflict"
)

// Error is a user-visible failure carrying a stable kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}

	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PermissionError names the denied action and the role it was resolved for.
type PermissionError struct {
	Action string
	Role   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s is not allowed for role %s", e.Action, e.Role)
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var permErr *PermissionError
	if errors.As(err, &permErr) {
		return KindForbidden
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	return KindUnknown
}
