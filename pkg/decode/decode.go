// Package decode provides an incremental UTF-8 decoder for byte streams that
// arrive in arbitrarily sized chunks, such as a chunked HTTP response body.
//
// A character whose bytes straddle two chunks is held back until the rest of
// it arrives, so the concatenated output never depends on where the chunk
// boundaries fell.
package decode

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrInvalidUTF8 is returned when the stream contains bytes that can never
// form valid UTF-8, including a character cut short by the end of the stream.
var ErrInvalidUTF8 = encoding.ErrInvalidUTF8

// Decoder converts a sequence of byte chunks into text.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	validator transform.Transformer

	// pending holds the bytes of a trailing, not yet complete character.
	// It never holds a complete character between calls.
	pending []byte

	// consumed counts the bytes fully decoded so far.
	consumed int64

	// err is sticky: once set, every call returns it.
	err error
}

// NewDecoder returns a Decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{
		validator: encoding.UTF8Validator,
	}
}

// Decode returns the text for every complete character available after
// appending chunk to the retained bytes of the previous call. Incomplete
// trailing bytes are kept for the next call. On an invalid sequence the text
// decoded before it is returned together with the error.
func (d *Decoder) Decode(chunk []byte) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	if len(chunk) == 0 {
		return "", nil
	}

	src := chunk
	if len(d.pending) > 0 {
		src = make([]byte, 0, len(d.pending)+len(chunk))
		src = append(src, d.pending...)
		src = append(src, chunk...)
	}

	return d.transform(src, false)
}

// Finalize flushes the decoder at the end of the stream. Any retained bytes
// at this point belong to a truncated character and produce an error wrapping
// ErrInvalidUTF8.
func (d *Decoder) Finalize() (string, error) {
	if d.err != nil {
		return "", d.err
	}
	if len(d.pending) == 0 {
		return "", nil
	}

	return d.transform(d.pending, true)
}

// Pending reports how many bytes are currently held back.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

func (d *Decoder) transform(src []byte, atEOF bool) (string, error) {
	dst := make([]byte, len(src))
	nDst, nSrc, err := d.validator.Transform(dst, src, atEOF)

	switch {
	case err == nil:
		d.pending = d.pending[:0]
	case errors.Is(err, transform.ErrShortSrc):
		rest := make([]byte, len(src)-nSrc)
		copy(rest, src[nSrc:])
		d.pending = rest
	default:
		offset := d.consumed + int64(nSrc)
		if atEOF {
			d.err = fmt.Errorf("truncated character at byte offset %d: %w", offset, ErrInvalidUTF8)
		} else {
			d.err = fmt.Errorf("invalid byte sequence at byte offset %d: %w", offset, ErrInvalidUTF8)
		}
		d.pending = nil
		d.consumed += int64(nSrc)
		return string(dst[:nDst]), d.err
	}

	d.consumed += int64(nSrc)
	return string(dst[:nDst]), nil
}
