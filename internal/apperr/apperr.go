// Package apperr defines the error taxonomy shared by the experimentation
// and context-store services.
//
// Every error that crosses a package boundary is either an *Error or wraps
// one, so transport layers can map it to a status code with KindOf without
// string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by who is at fault and how the caller should react.
type Kind int

const (
	// KindInternal is the zero value: anything not classified below.
	KindInternal Kind = iota
	// KindBadArgument marks malformed input such as a broken JSON-logic context.
	KindBadArgument
	// KindValidation marks well-formed input that violates a business rule.
	KindValidation
	// KindNotFound marks a missing resource.
	KindNotFound
	// KindConflict marks a write that collides with existing state.
	KindConflict
	// KindRemoteCall marks a failed call to the context store.
	KindRemoteCall
	// KindPersistence marks a failed write to the local durable store.
	KindPersistence
	// KindConcurrency marks a failure to enter a critical section.
	KindConcurrency
)

// String returns the machine-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBadArgument:
		return "bad_argument"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRemoteCall:
		return "remote_call"
	case KindPersistence:
		return "persistence"
	case KindConcurrency:
		return "concurrency"
	default:
		return "internal"
	}
}

// IsClientError reports whether errors of this kind are caused by the caller.
func (k Kind) IsClientError() bool {
	return k == KindBadArgument || k == KindValidation || k == KindNotFound || k == KindConflict
}

// Error is a classified error with a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrValidation) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is comparisons.
var (
	ErrBadArgument = &Error{Kind: KindBadArgument}
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrRemoteCall  = &Error{Kind: KindRemoteCall}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrConcurrency = &Error{Kind: KindConcurrency}
)

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, prefixing it with message.
// It returns nil if err is nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// BadArgument is shorthand for New(KindBadArgument, ...).
func BadArgument(format string, args ...any) error {
	return New(KindBadArgument, format, args...)
}

// Validation is shorthand for New(KindValidation, ...).
func Validation(format string, args ...any) error {
	return New(KindValidation, format, args...)
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or KindInternal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the message that is safe to show to an API caller.
// Client errors keep their message; everything else is reduced to "internal error".
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err).IsClientError() {
		return err.Error()
	}
	return "internal error"
}
