package stream

import (
	"context"
	"strings"
	"sync"
)

// Runner enforces at most one active session per output target. Submitting
// while a session is in flight cancels it with ErrSuperseded and waits for it
// to release its chunk source before the new session starts.
type Runner struct {
	opts []Option

	mu      sync.Mutex
	current *Session
	cancel  context.CancelCauseFunc
	done    chan struct{}
}

// NewRunner returns a Runner whose sessions are built with opts.
func NewRunner(opts ...Option) *Runner {
	return &Runner{opts: opts}
}

// Submit runs prompt in a new session and blocks until it is terminal. A
// blank prompt is rejected without affecting the active session.
func (r *Runner) Submit(ctx context.Context, prompt string) (State, error) {
	if strings.TrimSpace(prompt) == "" {
		return State{}, ErrEmptyPrompt
	}

	sess := NewSession(r.opts...)
	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})

	r.mu.Lock()
	prevCancel, prevDone := r.cancel, r.done
	r.current, r.cancel, r.done = sess, cancel, done
	r.mu.Unlock()

	if prevCancel != nil {
		prevCancel(ErrSuperseded)
		<-prevDone
	}

	defer func() {
		cancel(nil)
		close(done)

		r.mu.Lock()
		if r.done == done {
			r.cancel, r.done = nil, nil
		}
		r.mu.Unlock()
	}()

	return sess.Run(runCtx, prompt)
}

// Cancel aborts the active session, if any, with context.Canceled.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel(context.Canceled)
	}
}

// Current returns the state of the latest session. The zero State is
// returned before the first submission.
func (r *Runner) Current() State {
	r.mu.Lock()
	sess := r.current
	r.mu.Unlock()

	if sess == nil {
		return State{}
	}
	return sess.State()
}
