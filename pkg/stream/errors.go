package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPrompt is returned when a blank prompt is submitted. The
	// session stays Idle.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrAlreadySubmitted is returned when Submitted is applied to a session
	// that has left Idle. Sessions are single use.
	ErrAlreadySubmitted = errors.New("session already submitted")

	// ErrUnexpectedEvent is returned when an event does not apply to the
	// session's current, non-terminal status.
	ErrUnexpectedEvent = errors.New("unexpected event")

	// ErrNoTransport is returned by Run when the session has no Transport.
	ErrNoTransport = errors.New("no transport configured")

	// ErrSuperseded is the cancellation cause of a session replaced by a
	// newer submission on the same Runner.
	ErrSuperseded = errors.New("superseded by a newer submission")
)

// ErrorKind classifies a terminal failure.
type ErrorKind string

const (
	// ConnectionError is a transport failure before or during the read,
	// including cancellation and deadline expiry.
	ConnectionError ErrorKind = "connection_error"

	// ServerError is a non-success response status.
	ServerError ErrorKind = "server_error"

	// BodyUnavailable is a success status without a readable body.
	BodyUnavailable ErrorKind = "body_unavailable"

	// DecodeError is a byte sequence that is not valid UTF-8, including a
	// character truncated by the end of the stream.
	DecodeError ErrorKind = "decode_error"

	// ProtocolError is a stream that ended without the sentinel frame.
	ProtocolError ErrorKind = "protocol_error"
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectionError:
		return "connection error"
	case ServerError:
		return "server error"
	case BodyUnavailable:
		return "body unavailable"
	case DecodeError:
		return "decode error"
	case ProtocolError:
		return "protocol error"
	default:
		return string(k)
	}
}

// Kind sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrConnection      = &Error{Kind: ConnectionError}
	ErrServer          = &Error{Kind: ServerError}
	ErrBodyUnavailable = &Error{Kind: BodyUnavailable}
	ErrDecode          = &Error{Kind: DecodeError}
	ErrProtocol        = &Error{Kind: ProtocolError}
)

// Error is the terminal failure of a session.
type Error struct {
	Kind ErrorKind

	// StatusCode is the HTTP status for ServerError, zero otherwise.
	StatusCode int

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the kind sentinel for e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Cause == nil && t.StatusCode == 0 && t.Kind == e.Kind
}
