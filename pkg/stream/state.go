package stream

import "time"

// Status is the lifecycle position of a session.
type Status int

const (
	StatusIdle       Status = iota // Created, nothing submitted.
	StatusRequesting               // Request sent, awaiting the response head.
	StatusStreaming                // Reading chunks.
	StatusSucceeded                // Sentinel seen (or lenient end of stream).
	StatusFailed                   // Terminal failure, see State.Err.
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRequesting:
		return "requesting"
	case StatusStreaming:
		return "streaming"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// State is a snapshot of a session. Output only grows while the session is
// active and never changes once Status is terminal.
type State struct {
	// ID identifies the submission. Empty while Idle.
	ID     string
	Prompt string
	Output string
	Status Status

	// Err is set exactly when Status is StatusFailed.
	Err *Error

	// Frames counts the data frames applied to Output.
	Frames int

	// Bytes counts the body bytes received.
	Bytes int64

	// Terminated is true when the sentinel frame was seen.
	Terminated bool

	StartedAt   time.Time
	CompletedAt time.Time
}

// Update is published to observers after each change to a session.
type Update struct {
	ID string

	// Delta is the text appended to Output by this update. Empty for pure
	// status changes.
	Delta string

	Status Status
	Err    *Error
}

// Observer receives updates in the order they were applied.
type Observer func(Update)
