// Package history records finished generations.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fuhaigao/inference-server/pkg/stream"
)

// Mode is how a generation was requested.
type Mode string

const (
	ModeStream Mode = "stream"
	ModeUnary  Mode = "unary"
)

// Record is one finished generation.
type Record struct {
	ID        string
	Mode      Mode
	Prompt    string
	Output    string
	MaxLength int

	// Status is "succeeded" or "failed".
	Status string

	// ErrorKind and Error are set for failed generations. ErrorKind is a
	// stream.ErrorKind for streamed ones.
	ErrorKind string
	Error     string

	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration is the wall time of the generation.
func (r *Record) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Driver persists and retrieves records.
type Driver interface {
	// Put stores a record, replacing any record with the same ID.
	Put(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID. A missing record is a NotFoundError.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records, most recently started first. A
	// limit of zero or less returns every record.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Close releases the driver's resources.
	Close() error
}

// FromState builds a record from a terminal session state.
func FromState(st stream.State, maxLength int) *Record {
	rec := &Record{
		ID:          st.ID,
		Mode:        ModeStream,
		Prompt:      st.Prompt,
		Output:      st.Output,
		MaxLength:   maxLength,
		Status:      st.Status.String(),
		StartedAt:   st.StartedAt,
		CompletedAt: st.CompletedAt,
	}
	if st.Err != nil {
		rec.ErrorKind = string(st.Err.Kind)
		rec.Error = st.Err.Error()
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return rec
}

// NewUnaryRecord builds a record for a single-response generation.
func NewUnaryRecord(prompt, output string, maxLength int, startedAt time.Time, err error) *Record {
	rec := &Record{
		ID:          uuid.NewString(),
		Mode:        ModeUnary,
		Prompt:      prompt,
		Output:      output,
		MaxLength:   maxLength,
		Status:      stream.StatusSucceeded.String(),
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}
	if err != nil {
		rec.Status = stream.StatusFailed.String()
		rec.ErrorKind = "request_error"
		rec.Error = err.Error()
	}
	return rec
}
