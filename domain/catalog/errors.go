package catalog

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable class of a catalog error.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindNotFound            Kind = "NOT_FOUND"
	KindDuplicateIdentifier Kind = "DUPLICATE_IDENTIFIER"
	KindStoreUnavailable    Kind = "STORE_UNAVAILABLE"
	KindCacheUnavailable    Kind = "CACHE_UNAVAILABLE"
	KindForbidden           Kind = "FORBIDDEN"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrDuplicateIdentifier = &Error{Kind: KindDuplicateIdentifier, Message: "identifier already taken"}
	ErrStoreUnavailable    = &Error{Kind: KindStoreUnavailable, Message: "store unavailable"}
	ErrCacheUnavailable    = &Error{Kind: KindCacheUnavailable, Message: "cache unavailable"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden"}
)

// Error is the error type returned by the catalog store and services.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation returns a VALIDATION error with a formatted message.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a NOT_FOUND error for the named resource.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Forbidden returns a FORBIDDEN error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// DuplicateIdentifier reports a unique constraint lost to a concurrent writer.
func DuplicateIdentifier(field string, cause error) *Error {
	return &Error{Kind: KindDuplicateIdentifier, Message: field + " already taken", Cause: cause}
}

// StoreUnavailable wraps a failed persistent-store call.
func StoreUnavailable(op string, cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: "failed to " + op, Cause: cause}
}

// KindOf returns the Kind of err, or "" when err is not a catalog error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
