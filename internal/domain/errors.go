package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed classification of failures. Callers branch on the
// kind instead of matching error strings; the HTTP layer maps each kind to a
// status code.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"     // bad input shape, user-correctable
	KindNotFound       ErrorKind = "not_found"      // unknown session or resource
	KindTemplate       ErrorKind = "template"       // unknown section kind or missing variable
	KindGeneration     ErrorKind = "generation"     // backend unusable after primary and fallback
	KindInfrastructure ErrorKind = "infrastructure" // storage unreachable
)

// Error is a classified error with a stable machine-readable kind and a
// human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports kind equality, so errors.Is(err, &Error{Kind: k}) matches any
// error of kind k.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the classification of err, or KindInfrastructure when err
// carries no classification.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInfrastructure
}

// UserMessage extracts the human-readable message of a classified error.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Templatef(format string, args ...any) error {
	return &Error{Kind: KindTemplate, Message: fmt.Sprintf(format, args...)}
}

// Generationf wraps cause as a generation failure.
func Generationf(cause error, format string, args ...any) error {
	return &Error{Kind: KindGeneration, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Infrastructuref wraps cause as an infrastructure failure.
func Infrastructuref(cause error, format string, args ...any) error {
	return &Error{Kind: KindInfrastructure, Message: fmt.Sprintf(format, args...), cause: cause}
}
