// Package errors carries the failure taxonomy shared by every pipeline
// component. Errors are classified by Kind so callers can branch on
// what went wrong without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Kind names a failure category.
type Kind string

const (
	KindConfig    Kind = "config"    // invalid or missing configuration
	KindDevice    Kind = "device"    // audio or camera unavailable
	KindTransport Kind = "transport" // connection drop, timeout, unreachable backend
	KindProtocol  Kind = "protocol"  // malformed or unmatched payload
	KindSession   Kind = "session"   // pipeline lifecycle misuse
	KindStorage   Kind = "storage"   // conversation store failure
	KindVision    Kind = "vision"    // image capture or analysis failure
	KindBootstrap Kind = "bootstrap" // component assembly or startup failure
	KindUnknown   Kind = "unknown"
)

// Error is the typed error carried across component boundaries. Op
// identifies the operation that failed, in "component.operation" form.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an error with no underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches kind and context to err. A nil err yields nil, and an
// err that already carries a Kind passes through unchanged so the
// original classification survives intermediate layers.
func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: err}
}

// IsKind reports whether the first typed error in err's chain has the
// given kind. Untyped errors never match.
func IsKind(err error, kind Kind) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind == kind
	}
	return false
}
