package stream

import (
	"log/slog"

	"github.com/fuhaigao/inference-server/pkg/logger"
)

const (
	// DefaultMaxLength is the max_length sent with each request.
	DefaultMaxLength = 20

	// DefaultEndMarker is appended to the output when the sentinel arrives.
	DefaultEndMarker = "\n[End of Stream]"
)

// Option configures a Session or a Runner.
type Option func(*options)

type options struct {
	transport         Transport
	maxLength         int
	endMarker         string
	allowUnterminated bool
	observer          Observer
	logger            *slog.Logger
}

func newOptions(opts ...Option) options {
	o := options{
		maxLength: DefaultMaxLength,
		endMarker: DefaultEndMarker,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTransport sets the transport used by Run.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithMaxLength sets the max_length sent with the request.
func WithMaxLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLength = n
		}
	}
}

// WithEndMarker overrides the text appended to the output on the sentinel.
func WithEndMarker(marker string) Option {
	return func(o *options) {
		o.endMarker = marker
	}
}

// WithAllowUnterminated makes a stream that ends without the sentinel
// succeed instead of failing with ProtocolError. No end marker is appended
// in that case.
func WithAllowUnterminated(allow bool) Option {
	return func(o *options) {
		o.allowUnterminated = allow
	}
}

// WithObserver registers a function called after every change.
func WithObserver(fn Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithLogger sets the logger. Defaults to discarding all output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
