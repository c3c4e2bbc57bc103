package service

import (
	"fmt"
	"sort"
	"strings"

	"devconnector/logger"
	"devconnector/store"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDuplicate
	KindNotAuthorized
	KindAlreadyInState
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate"
	case KindNotAuthorized:
		return "not_authorized"
	case KindAlreadyInState:
		return "already_in_state"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is the failure every service operation returns. Fields is the body
// sent to the client: reason or field name -> message.
type Error struct {
	Kind   Kind
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, strings.Join(parts, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, key, msg string) *Error {
	return &Error{Kind: kind, Fields: map[string]string{key: msg}}
}

func ValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Fields: fields}
}

func NotFound(key, msg string) *Error       { return newError(KindNotFound, key, msg) }
func Duplicate(key, msg string) *Error      { return newError(KindDuplicate, key, msg) }
func NotAuthorized(key, msg string) *Error  { return newError(KindNotAuthorized, key, msg) }
func AlreadyInState(key, msg string) *Error { return newError(KindAlreadyInState, key, msg) }

// KindOf reports the kind of err, KindInternal for anything that is not an
// *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Fields returns the client body for err.
func Fields(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) && len(e.Fields) > 0 {
		return e.Fields
	}
	return map[string]string{"error": "Internal server error"}
}

// storageError classifies a store failure. Absence is handled by callers;
// what reaches here is a fault, retryable or not.
func storageError(err error, op string) *Error {
	entry := logger.Log.WithError(err).WithField("op", op)
	if store.IsTransient(err) {
		entry.Warn("storage unavailable")
		return &Error{
			Kind:   KindUnavailable,
			Fields: map[string]string{"error": "Storage temporarily unavailable, try again"},
			Err:    err,
		}
	}
	entry.Error("storage failure")
	return &Error{
		Kind:   KindInternal,
		Fields: map[string]string{"error": "Internal server error"},
		Err:    err,
	}
}

func conflictError(what string) *Error {
	return newError(KindConflict, "conflict", fmt.Sprintf("The %s was modified concurrently, try again", what))
}
