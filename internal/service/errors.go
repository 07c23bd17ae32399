package service

import (
	"errors"
	"fmt"
)

// ErrKind classifies a service failure so the HTTP layer can decide between
// reject, 404, conflict, and retry. Every kind except KindStorage is raised
// before any mutation is attempted; KindStorage failures roll back whole.
type ErrKind string

const (
	KindValidation   ErrKind = "validation"
	KindNotFound     ErrKind = "not_found"
	KindInvalidState ErrKind = "invalid_state"
	KindStorage      ErrKind = "storage"
)

type Error struct {
	Kind    ErrKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func validationErr(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundErr(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidStateErr(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func storageErr(err error, msg string) error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool   { return kindOf(err) == KindValidation }
func IsNotFound(err error) bool     { return kindOf(err) == KindNotFound }
func IsInvalidState(err error) bool { return kindOf(err) == KindInvalidState }
func IsStorage(err error) bool      { return kindOf(err) == KindStorage }

// ErrorKind exposes the classification for callers outside the package.
func ErrorKind(err error) ErrKind { return kindOf(err) }
