package stream

// Event is a sealed interface for the inputs of the session state machine.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// Submitted starts a session with a prompt.
type Submitted struct {
	Prompt string
}

func (Submitted) event() {}

// ResponseReceived carries the response head of the streaming request.
type ResponseReceived struct {
	StatusCode int

	// Status is the status line text, e.g. "500 Internal Server Error".
	Status string

	// Detail is an excerpt of the body of a failed response.
	Detail string

	// HasBody is false when the response has no readable body.
	HasBody bool
}

func (ResponseReceived) event() {}

// ChunkReceived delivers the next chunk of the response body.
type ChunkReceived struct {
	Chunk []byte
}

func (ChunkReceived) event() {}

// StreamEnded signals that the chunk source is exhausted.
type StreamEnded struct{}

func (StreamEnded) event() {}

// TransportFailed signals a failure opening the request or reading the next
// chunk.
type TransportFailed struct {
	Err error
}

func (TransportFailed) event() {}

// Interface compliance checks.
var (
	_ Event = Submitted{}
	_ Event = ResponseReceived{}
	_ Event = ChunkReceived{}
	_ Event = StreamEnded{}
	_ Event = TransportFailed{}
)
