// Package stream reconstructs generated text from a framed, chunked HTTP
// response.
//
// A Session is an explicit state machine: every input is a typed Event applied
// with Session.Apply, which performs no I/O. Session.Run drives one request
// end to end by pulling chunks from a ChunkSource supplied by a Transport.
// The Runner adds a single-flight guard on top: submitting while a session is
// still streaming cancels and replaces it.
//
//	Idle ──Submitted──▶ Requesting ──ResponseReceived──▶ Streaming ──sentinel──▶ Succeeded
//	                        │                                │
//	                        └──────────────┬─────────────────┘
//	                                       ▼
//	                                 Failed(kind)
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fuhaigao/inference-server/pkg/decode"
	"github.com/fuhaigao/inference-server/pkg/sse"
)

// Session drives a single streaming request. It is safe to read State from
// other goroutines while Run is in progress.
type Session struct {
	opts options

	mu       sync.Mutex
	state    State
	output   strings.Builder
	decoder  *decode.Decoder
	splitter *sse.Splitter

	// updates collects observer notifications produced while mu is held.
	updates []Update
}

// NewSession returns an Idle session.
func NewSession(opts ...Option) *Session {
	return &Session{
		opts:     newOptions(opts...),
		decoder:  decode.NewDecoder(),
		splitter: sse.NewSplitter(),
	}
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Err returns the terminal failure, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Err == nil {
		return nil
	}
	return s.state.Err
}

// Done reports whether the session has reached a terminal status.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status.Terminal()
}

// Apply performs the transition for ev. Events arriving after a terminal
// status are ignored. Observers are notified after the transition, outside the
// session lock.
func (s *Session) Apply(ev Event) error {
	s.mu.Lock()
	err := s.apply(ev)
	updates := s.updates
	s.updates = nil
	s.mu.Unlock()

	if s.opts.observer != nil {
		for _, u := range updates {
			s.opts.observer(u)
		}
	}

	return err
}

// Run submits prompt through the configured Transport and reads the response
// until the session is terminal. The chunk source is closed on every exit
// path. The returned error is the session's *Error when it failed.
func (s *Session) Run(ctx context.Context, prompt string) (State, error) {
	if s.opts.transport == nil {
		return s.State(), ErrNoTransport
	}

	if err := s.Apply(Submitted{Prompt: prompt}); err != nil {
		return s.State(), err
	}

	if ctx.Err() != nil {
		_ = s.Apply(TransportFailed{Err: context.Cause(ctx)})
		return s.result()
	}

	resp, err := s.opts.transport.OpenStream(ctx, Request{
		Prompt:    prompt,
		MaxLength: s.opts.maxLength,
	})
	if err != nil {
		_ = s.Apply(TransportFailed{Err: transportCause(ctx, err)})
		return s.result()
	}
	if resp == nil {
		_ = s.Apply(TransportFailed{Err: errors.New("transport returned no response")})
		return s.result()
	}

	if resp.Body != nil {
		defer func() {
			if cerr := resp.Body.Close(); cerr != nil {
				s.opts.logger.Debug("closing chunk source", "session", s.id(), "error", cerr)
			}
		}()
	}

	_ = s.Apply(ResponseReceived{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Detail:     resp.Detail,
		HasBody:    resp.Body != nil,
	})

	for !s.Done() {
		if ctx.Err() != nil {
			_ = s.Apply(TransportFailed{Err: context.Cause(ctx)})
			break
		}

		chunk, err := resp.Body.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			_ = s.Apply(StreamEnded{})
		case err != nil:
			_ = s.Apply(TransportFailed{Err: transportCause(ctx, err)})
		default:
			_ = s.Apply(ChunkReceived{Chunk: chunk})
		}
	}

	return s.result()
}

func (s *Session) result() (State, error) {
	st := s.State()
	if st.Err != nil {
		return st, st.Err
	}
	return st, nil
}

func (s *Session) id() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ID
}

// apply must be called with mu held.
func (s *Session) apply(ev Event) error {
	if s.state.Status.Terminal() {
		if _, ok := ev.(Submitted); ok {
			return ErrAlreadySubmitted
		}
		return nil
	}

	switch e := ev.(type) {
	case Submitted:
		return s.submit(e)
	case ResponseReceived:
		if s.state.Status != StatusRequesting {
			return s.unexpected(ev)
		}
		s.respond(e)
	case ChunkReceived:
		if s.state.Status != StatusStreaming {
			return s.unexpected(ev)
		}
		s.receive(e.Chunk)
	case StreamEnded:
		if s.state.Status != StatusStreaming {
			return s.unexpected(ev)
		}
		s.end()
	case TransportFailed:
		if s.state.Status == StatusIdle {
			return s.unexpected(ev)
		}
		s.fail(&Error{Kind: ConnectionError, Cause: e.Err})
	default:
		return s.unexpected(ev)
	}

	return nil
}

func (s *Session) submit(e Submitted) error {
	if s.state.Status != StatusIdle {
		return ErrAlreadySubmitted
	}
	if strings.TrimSpace(e.Prompt) == "" {
		return ErrEmptyPrompt
	}

	s.output.Reset()
	s.decoder = decode.NewDecoder()
	s.splitter = sse.NewSplitter()
	s.state = State{
		ID:        uuid.NewString(),
		Prompt:    e.Prompt,
		Status:    StatusRequesting,
		StartedAt: time.Now(),
	}

	s.opts.logger.Debug("session submitted",
		"session", s.state.ID,
		"max_length", s.opts.maxLength,
	)
	s.publish("")
	return nil
}

func (s *Session) respond(e ResponseReceived) {
	if e.StatusCode < 200 || e.StatusCode > 299 {
		status := e.Status
		if status == "" {
			status = fmt.Sprintf("%d", e.StatusCode)
		}
		cause := fmt.Errorf("status %s", status)
		if e.Detail != "" {
			cause = fmt.Errorf("status %s: %s", status, e.Detail)
		}
		s.fail(&Error{Kind: ServerError, StatusCode: e.StatusCode, Cause: cause})
		return
	}

	if !e.HasBody {
		s.fail(&Error{Kind: BodyUnavailable, Cause: errors.New("response has no readable body")})
		return
	}

	s.output.Reset()
	s.state.Status = StatusStreaming
	s.opts.logger.Debug("session streaming", "session", s.state.ID, "status", e.StatusCode)
	s.publish("")
}

func (s *Session) receive(chunk []byte) {
	s.state.Bytes += int64(len(chunk))

	text, err := s.decoder.Decode(chunk)
	s.consume(text)
	if err != nil && !s.state.Status.Terminal() {
		s.fail(&Error{Kind: DecodeError, Cause: err})
	}
}

func (s *Session) end() {
	text, err := s.decoder.Finalize()
	s.consume(text)
	if s.state.Status.Terminal() {
		return
	}
	if err != nil {
		s.fail(&Error{Kind: DecodeError, Cause: err})
		return
	}

	if s.opts.allowUnterminated {
		s.opts.logger.Debug("stream ended without sentinel, accepting",
			"session", s.state.ID,
			"residual_bytes", len(s.splitter.Residual()),
		)
		s.succeed("")
		return
	}

	cause := errors.New("stream ended without sentinel")
	if residual := s.splitter.Residual(); residual != "" {
		cause = fmt.Errorf("stream ended mid-frame with %d unterminated bytes", len(residual))
	}
	s.fail(&Error{Kind: ProtocolError, Cause: cause})
}

// consume splits text into frames and applies them in order. Frames after
// the sentinel are discarded.
func (s *Session) consume(text string) {
	for _, raw := range s.splitter.Push(text) {
		frame := sse.Parse(raw)

		switch frame.Kind {
		case sse.KindData:
			s.output.WriteString(frame.Payload)
			s.state.Frames++
			s.publish(frame.Payload)
		case sse.KindSentinel:
			s.state.Terminated = true
			s.output.WriteString(s.opts.endMarker)
			s.succeed(s.opts.endMarker)
			return
		default:
			s.opts.logger.Debug("skipping malformed frame",
				"session", s.state.ID,
				"frame", raw,
			)
		}
	}
}

func (s *Session) succeed(delta string) {
	s.state.Status = StatusSucceeded
	s.state.CompletedAt = time.Now()
	s.opts.logger.Debug("session succeeded",
		"session", s.state.ID,
		"frames", s.state.Frames,
		"bytes", s.state.Bytes,
	)
	s.publish(delta)
}

func (s *Session) fail(err *Error) {
	s.state.Status = StatusFailed
	s.state.Err = err
	s.state.CompletedAt = time.Now()
	s.opts.logger.Debug("session failed",
		"session", s.state.ID,
		"kind", string(err.Kind),
		"error", err,
	)
	s.publish("")
}

func (s *Session) unexpected(ev Event) error {
	return fmt.Errorf("%w: %T while %s", ErrUnexpectedEvent, ev, s.state.Status)
}

func (s *Session) publish(delta string) {
	if s.opts.observer == nil {
		return
	}
	s.updates = append(s.updates, Update{
		ID:     s.state.ID,
		Delta:  delta,
		Status: s.state.Status,
		Err:    s.state.Err,
	})
}

func (s *Session) snapshot() State {
	st := s.state
	st.Output = s.output.String()
	return st
}

// transportCause prefers the context's cancellation cause over the error the
// transport reported for it.
func transportCause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		return fmt.Errorf("%w: %w", cause, err)
	}
	return err
}
