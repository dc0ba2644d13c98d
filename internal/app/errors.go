package app

import (
	"errors"
	"fmt"
)

// Kind classifies an application error. The transport maps each kind to a
// response status.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuth          Kind = "auth"
	KindCapacity      Kind = "capacity"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindConfiguration Kind = "configuration"
	KindUpstream      Kind = "upstream"
)

// Error is returned by App operations for every expected failure.
// Message is safe to show to end users.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels such as ErrNotFound regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAuth          = &Error{Kind: KindAuth}
	ErrCapacity      = &Error{Kind: KindCapacity}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrUpstream      = &Error{Kind: KindUpstream}
)

// KindOf returns the kind of err, or "" for unexpected errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func ValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func AuthError(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg}
}

func CapacityError(msg string) *Error {
	return &Error{Kind: KindCapacity, Message: msg}
}

func ConflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func NotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func ConfigurationError(msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg}
}

// UpstreamError wraps a language model failure, keeping the provider message.
func UpstreamError(err error) *Error {
	return &Error{Kind: KindUpstream, Message: err.Error(), Err: err}
}

const (
	msgNotFound           = "Not found"
	msgInvalidCredentials = "Invalid credentials"
	msgUnauthorized       = "Missing or invalid token"
	msgEmailTaken         = "Email already registered"
)
