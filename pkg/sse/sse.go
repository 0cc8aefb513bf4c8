// Package sse implements the framing used by the inference server's streaming
// endpoint: a minimal subset of Server-Sent Events where each event ("frame")
// is delimited by a blank line and carries a single "data: " payload.
//
// The package splits decoded text into raw frames (Splitter) and classifies
// each raw frame (Parse). It does not read from the network and does not
// decode bytes; see pkg/decode for that.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

const (
	// Delimiter separates frames in the decoded text.
	Delimiter = "\n\n"

	// DataPrefix marks a frame carrying a payload. The space is part of the
	// prefix: "data:x" is not a data frame.
	DataPrefix = "data: "

	// Sentinel is the payload that marks the end of generation.
	Sentinel = "EOS"
)

// Kind classifies a frame.
type Kind int

const (
	// KindMalformed is any frame without the data prefix (comments,
	// keep-alives, unknown fields, empty frames). It is skipped, never fatal.
	KindMalformed Kind = iota

	// KindData carries a generated-text fragment.
	KindData

	// KindSentinel marks the end of generation.
	KindSentinel
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindSentinel:
		return "sentinel"
	default:
		return "malformed"
	}
}

// Frame is a single parsed frame.
type Frame struct {
	Kind Kind

	// Payload is the text after DataPrefix. For malformed frames it is the
	// raw frame, kept only for logging.
	Payload string
}
