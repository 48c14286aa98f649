package reassembly

import (
	"errors"
	"fmt"
)

// Kind classifies a reassembly failure.
type Kind string

const (
	// OutOfOrder marks a tool-call delta addressing an index that was
	// already closed, or one that skips ahead of the next unopened index.
	OutOfOrder Kind = "out_of_order"
	// DuplicateID marks a tool-call slot opening with an id already used by
	// another slot in the same message.
	DuplicateID Kind = "duplicate_id"
	// MalformedArguments marks a finalized argument buffer that is not valid
	// JSON. It is attached to the offending slot only; the rest of the
	// message is still delivered.
	MalformedArguments Kind = "malformed_arguments"
)

// ErrClosed is returned for any delta pushed after the stream ended. The
// delta is discarded; the reassembler state is untouched.
var ErrClosed = errors.New("message stream already ended")

// Error carries enough context to diagnose a reassembly failure without
// re-running the stream: the failing slot index and id, and the raw argument
// fragment where one exists.
type Error struct {
	Kind     Kind
	Index    int
	ID       string
	Fragment string
	cause    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("reassembly: %s at index %d", e.Kind, e.Index)
	if e.ID != "" {
		msg += fmt.Sprintf(" (id %q)", e.ID)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches errors of the same kind, so callers can probe with
// errors.Is(err, &Error{Kind: OutOfOrder}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}
