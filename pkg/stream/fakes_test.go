package stream_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/fuhaigao/inference-server/pkg/stream"
)

// fakeSource replays a fixed list of chunks, then returns err (io.EOF when
// unset).
type fakeSource struct {
	chunks [][]byte
	err    error

	// block makes Next wait for ctx once the chunks are exhausted.
	block bool

	mu     sync.Mutex
	closed atomic.Int32
}

func newFakeSource(chunks ...string) *fakeSource {
	src := &fakeSource{}
	for _, c := range chunks {
		src.chunks = append(src.chunks, []byte(c))
	}
	return src
}

func (f *fakeSource) Next(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	if len(f.chunks) > 0 {
		chunk := f.chunks[0]
		f.chunks = f.chunks[1:]
		f.mu.Unlock()
		return chunk, nil
	}
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, io.EOF
}

func (f *fakeSource) Close() error {
	f.closed.Add(1)
	return nil
}

func (f *fakeSource) Closed() bool {
	return f.closed.Load() > 0
}

// fakeTransport returns a canned response.
type fakeTransport struct {
	resp *stream.Response
	err  error

	requests []stream.Request
}

func (t *fakeTransport) OpenStream(_ context.Context, req stream.Request) (*stream.Response, error) {
	t.requests = append(t.requests, req)
	if t.err != nil {
		return nil, t.err
	}
	return t.resp, nil
}

func okResponse(src stream.ChunkSource) *stream.Response {
	return &stream.Response{StatusCode: 200, Status: "200 OK", Body: src}
}

// funcTransport hands out a new source per call.
type funcTransport func(ctx context.Context, req stream.Request) (*stream.Response, error)

func (f funcTransport) OpenStream(ctx context.Context, req stream.Request) (*stream.Response, error) {
	return f(ctx, req)
}
