package scriptx

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SCRIPT EXCEPTIONS
// =============================================================================

// Exception is a script-level error surfaced to the host. It is produced by
// the exception bridge whenever a backend reports a pending native error, and
// is the form a host error takes when it is rethrown into script code.
type Exception struct {
	Name       string // Error name (e.g., "TypeError", "SyntaxError")
	Message    string // Error message
	Cause      string // Error cause
	Stack      string // Stack trace, when the backend records one
	JSONString string // Serialized form of the thrown value, when available
}

// Error implements the error interface.
func (err *Exception) Error() string {
	if err.Cause != "" {
		return fmt.Sprintf("%s: %s (cause: %s)", err.Name, err.Message, err.Cause)
	}
	return fmt.Sprintf("%s: %s", err.Name, err.Message)
}

// Is makes every Exception match ErrException.
func (err *Exception) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindException
}

// AsException converts any error into the Exception that is rethrown into
// script code. Core errors become TypeErrors, everything else a plain Error.
func AsException(err error) *Exception {
	if err == nil {
		return nil
	}
	var exc *Exception
	if errors.As(err, &exc) {
		return exc
	}
	var e *Error
	if errors.As(err, &e) {
		msg := e.Detail
		if msg == "" {
			msg = string(e.Kind)
		}
		out := &Exception{Name: "TypeError", Message: msg}
		if e.Cause != nil {
			out.Cause = e.Cause.Error()
		}
		return out
	}
	return &Exception{Name: "Error", Message: err.Error()}
}

// =============================================================================
// CORE ERRORS
// =============================================================================

// ErrorKind categorizes failures raised by the core itself.
type ErrorKind string

const (
	KindNoActiveEngine     ErrorKind = "no_active_engine"
	KindNullReference      ErrorKind = "null_reference"
	KindCast               ErrorKind = "cast"
	KindNotCallable        ErrorKind = "not_callable"
	KindInvalidSelf        ErrorKind = "invalid_self"
	KindConstruction       ErrorKind = "construction"
	KindCollectedReference ErrorKind = "collected_reference"
	KindConversion         ErrorKind = "conversion"
	KindException          ErrorKind = "exception"
	KindScopeOrder         ErrorKind = "scope_order"
	KindEngineDestroyed    ErrorKind = "engine_destroyed"
)

// Error is the structured error returned by core operations.
type Error struct {
	Cause  error
	Kind   ErrorKind
	Op     string
	Detail string
}

// Sentinels for errors.Is. Matching compares the kind only.
var (
	ErrNoActiveEngine     = &Error{Kind: KindNoActiveEngine}
	ErrNullReference      = &Error{Kind: KindNullReference}
	ErrCast               = &Error{Kind: KindCast}
	ErrNotCallable        = &Error{Kind: KindNotCallable}
	ErrInvalidSelf        = &Error{Kind: KindInvalidSelf}
	ErrConstruction       = &Error{Kind: KindConstruction}
	ErrCollectedReference = &Error{Kind: KindCollectedReference}
	ErrConversion         = &Error{Kind: KindConversion}
	ErrException          = &Error{Kind: KindException}
	ErrScopeOrder         = &Error{Kind: KindScopeOrder}
	ErrEngineDestroyed    = &Error{Kind: KindEngineDestroyed}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("scriptx: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Kind == t.Kind
}

func newError(kind ErrorKind, op, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Kind: kind, Op: op, Detail: detail}
}

func wrapError(kind ErrorKind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

func castError(op string, from ValueKind, to ValueKind) *Error {
	return newError(KindCast, op, "cannot cast %s to %s", from, to)
}
