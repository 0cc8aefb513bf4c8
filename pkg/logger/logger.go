// Package logger builds the slog loggers used across the inference client.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

type config struct {
	level  slog.Level
	pretty bool
	json   bool
	source bool
	writer io.Writer
}

// New returns a *slog.Logger. The default is slog's text handler on
// os.Stdout at Info level.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, writer: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	w := c.writer

	switch {
	case c.pretty:
		return slog.New(log.NewWithOptions(w, log.Options{
			Level:           log.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.source,
		}))
	case c.json:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	}
}

// NewCLI returns the logger for command line use. It writes to stderr so that
// stdout only carries generated text, and is pretty when stderr is a terminal.
func NewCLI(debug bool) *slog.Logger {
	return New(
		WithDebug(debug),
		WithWriter(os.Stderr),
		WithPretty(term.IsTerminal(int(os.Stderr.Fd()))),
	)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
