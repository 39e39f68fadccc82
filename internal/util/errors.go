package util

import (
	"errors"
	"fmt"
)

// Kind classifies failures so every layer can report them the same way.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindValidation
	KindNotFound
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream_unavailable"
	default:
		return "internal"
	}
}

// FieldError is one per-field validation reason.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// AppError is the application error carried across store, service and handler.
type AppError struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// KindOf returns the kind of err, KindInternal when err is not an *AppError.
func KindOf(err error) Kind {
	var e *AppError
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func Unauthenticated(msg string) error {
	return &AppError{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(msg string) error {
	return &AppError{Kind: KindForbidden, Message: msg}
}

func NotFound(msg string) error {
	return &AppError{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) error {
	return &AppError{Kind: KindConflict, Message: msg}
}

// Invalid builds a validation error with per-field reasons.
func Invalid(msg string, fields ...FieldError) error {
	return &AppError{Kind: KindValidation, Message: msg, Fields: fields}
}

// Upstream wraps a storage or file-storage failure.
func Upstream(msg string, err error) error {
	return &AppError{Kind: KindUpstream, Message: msg, Err: err}
}
