package stream

import (
	"context"
	"io"
	"sync"
)

// DefaultChunkSize is the read size used by NewReaderSource when none is given.
const DefaultChunkSize = 4096

// maxEmptyReads bounds consecutive (0, nil) reads before giving up with
// io.ErrNoProgress.
const maxEmptyReads = 100

// Request is the body of a streaming generation request.
type Request struct {
	Prompt    string `json:"prompt"`
	MaxLength int    `json:"max_length"`
}

// Response is the head of a streaming generation response.
type Response struct {
	StatusCode int
	Status     string

	// Detail is an excerpt of the body of a non-success response.
	Detail string

	// Body is nil when the response has no readable body. The session owns
	// it and closes it on every exit path.
	Body ChunkSource
}

// Transport opens streaming generation requests.
type Transport interface {
	OpenStream(ctx context.Context, req Request) (*Response, error)
}

// ChunkSource is a pull-based, finite, non-restartable sequence of byte
// chunks. Next returns io.EOF once the sequence is exhausted and never
// returns a chunk together with an error. Close releases the underlying
// connection and is safe to call more than once.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// readerSource adapts an io.ReadCloser to a ChunkSource.
type readerSource struct {
	rc   io.ReadCloser
	buf  []byte
	err  error
	once sync.Once
	cerr error
}

// NewReaderSource returns a ChunkSource reading at most size bytes per chunk
// from rc. A size of zero or less uses DefaultChunkSize.
func NewReaderSource(rc io.ReadCloser, size int) ChunkSource {
	if size <= 0 {
		size = DefaultChunkSize
	}

	return &readerSource{
		rc:  rc,
		buf: make([]byte, size),
	}
}

func (r *readerSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}

	for range maxEmptyReads {
		n, err := r.rc.Read(r.buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, r.buf[:n])

			// Defer the error until the data has been handed out.
			r.err = err
			return chunk, nil
		}
		if err != nil {
			r.err = err
			return nil, err
		}
	}

	r.err = io.ErrNoProgress
	return nil, r.err
}

func (r *readerSource) Close() error {
	r.once.Do(func() {
		r.cerr = r.rc.Close()
	})
	return r.cerr
}
