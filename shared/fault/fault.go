// Package fault carries the orchestrator's error taxonomy. Component
// local failures (extraction, question phrasing) are absorbed with
// fallbacks and never surface as conversation-ending errors; persistence
// and unknown-session errors are surfaced verbatim to the caller.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindSessionNotFound         Kind = "session_not_found"
	KindSessionTerminal         Kind = "session_terminal"
	KindExtractionFailed        Kind = "extraction_failed"
	KindCollaboratorUnavailable Kind = "collaborator_unavailable"
	KindValidationFailed        Kind = "validation_failed"
	KindStoreUnavailable        Kind = "store_unavailable"
	KindUnknown                 Kind = "unknown"
)

// Error is a kinded error. The kind survives wrapping so transports can
// map failures to their surface without string matching.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

func Wrap(kind Kind, err error, format string, a ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
