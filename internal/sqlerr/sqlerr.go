// Package sqlerr defines the engine's error taxonomy. Every failure the
// engine surfaces is a *Error with a Kind (which stage failed) and a Code
// (what exactly went wrong), so callers can decide whether an error is
// recoverable without string matching.
package sqlerr

import (
	"errors"
	"fmt"
)

// Kind identifies the stage that produced the error.
type Kind uint8

const (
	KindUnknown Kind = iota

	// KindBind: name resolution, type checking or capability checks failed.
	// Always raised before any storage mutation.
	KindBind

	// KindEvaluation: expression evaluation failed on an already-fetched row.
	KindEvaluation

	// KindConstraint: nullability, uniqueness or coercion failure on write.
	KindConstraint

	// KindStorage: backend-reported failure, opaque beyond its code.
	KindStorage

	// KindTransaction: begin/commit/rollback misuse or failure.
	KindTransaction
)

func (k Kind) String() string {
	switch k {
	case KindBind:
		return "bind"
	case KindEvaluation:
		return "evaluation"
	case KindConstraint:
		return "constraint"
	case KindStorage:
		return "storage"
	case KindTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// Code narrows a Kind down to a specific failure.
type Code uint8

const (
	CodeUnknown Code = iota

	// bind
	CodeUnknownTable
	CodeUnknownColumn
	CodeAmbiguousColumn
	CodeTypeMismatch
	CodeCapabilityUnsupported
	CodeStaleSchema
	CodeUnsupportedStatement

	// evaluation
	CodeDivisionByZero
	CodeBadArity
	CodeUnknownFunction

	// constraint
	CodeNullViolation
	CodeUniqueViolation
	CodeValueCoercion

	// storage
	CodeTableExists
	CodeIndexExists
	CodeNotFound
	CodeBackend

	// transaction
	CodeNestedTransaction
	CodeNoTransaction
)

// Error is the single error type crossing the engine boundary.
type Error struct {
	Kind Kind
	Code Code

	msg string
	err error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is lets errors.Is match on a prototype carrying only Kind and/or Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != KindUnknown && t.Kind != e.Kind {
		return false
	}
	if t.Code != CodeUnknown && t.Code != e.Code {
		return false
	}
	return t.msg == "" || t.msg == e.msg
}

func Newf(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap keeps the backend cause reachable via errors.Unwrap.
func Wrap(kind Kind, code Code, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, msg: fmt.Sprintf(format, args...), err: err}
}

func Bindf(code Code, format string, args ...any) *Error {
	return Newf(KindBind, code, format, args...)
}

func Evalf(code Code, format string, args ...any) *Error {
	return Newf(KindEvaluation, code, format, args...)
}

func Constraintf(code Code, format string, args ...any) *Error {
	return Newf(KindConstraint, code, format, args...)
}

func Storagef(code Code, format string, args ...any) *Error {
	return Newf(KindStorage, code, format, args...)
}

func Txf(code Code, format string, args ...any) *Error {
	return Newf(KindTransaction, code, format, args...)
}

// KindOf reports the Kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf reports the Code of err, or CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
