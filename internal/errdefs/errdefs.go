// Package errdefs carries the process-wide error taxonomy. Every recoverable
// failure is classified so callers can decide between retry, teardown and
// process exit without string matching.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind is the failure category.
type Kind int

const (
	// Environment means the display server or a required global is missing.
	// Fatal at startup, exit code 1.
	Environment Kind = iota
	// Config means configuration that cannot be clamped into validity.
	Config
	// Decoder means the media library failed to create, load or render.
	Decoder
	// Gl means GL surface creation or context binding failed.
	Gl
	// OutputGone means the compositor removed the output. Not a failure,
	// only a teardown trigger.
	OutputGone
	// Protocol means a malformed control-channel request.
	Protocol
)

func (k Kind) String() string {
	switch k {
	case Environment:
		return "environment"
	case Config:
		return "config"
	case Decoder:
		return "decoder"
	case Gl:
		return "gl"
	case OutputGone:
		return "output-gone"
	case Protocol:
		return "protocol"
	}
	return "unknown"
}

// Error is the tagged error carried across component boundaries.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a classified error.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. A nil cause returns nil.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
