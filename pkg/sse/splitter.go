package sse

import "strings"

// Splitter accumulates decoded text and extracts complete frames.
//
//	┌──────────────┐   ┌────────────────┐   ┌────────────┐
//	│ decoded text │──▶│ Splitter.Push  │──▶│ raw frames │
//	└──────────────┘   └────────────────┘   └────────────┘
//	                           │
//	                           ▼
//	                   residual (partial frame,
//	                   kept for the next Push)
//
// A Splitter is not safe for concurrent use.
type Splitter struct {
	// buf never contains Delimiter once Push returns.
	buf strings.Builder
}

// NewSplitter returns an empty Splitter.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// Push appends text and returns every frame completed by it, in order. The
// delimiter itself is not part of any frame. Text after the last delimiter is
// retained and prefixed to the next Push.
func (s *Splitter) Push(text string) []string {
	if text == "" {
		return nil
	}

	s.buf.WriteString(text)
	pending := s.buf.String()

	var frames []string
	for {
		before, after, found := strings.Cut(pending, Delimiter)
		if !found {
			break
		}
		frames = append(frames, before)
		pending = after
	}

	if frames != nil {
		s.buf.Reset()
		s.buf.WriteString(pending)
	}

	return frames
}

// Residual returns the text received after the last delimiter.
func (s *Splitter) Residual() string {
	return s.buf.String()
}
