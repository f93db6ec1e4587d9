package rediwire

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// Codec is the glue between a growable byte buffer and the Parser/
// Serializer (spec §4.4). One Decode call yields at most one frame: a
// complete Data, the absence of one ("more bytes needed"), a transient
// per-message error (the frame parsed as a server "-" reply), or a fatal
// framing error.
//
// The read buffer is pooled via bytebufferpool so repeated Feed/Decode
// cycles on a long-lived Connection don't churn the allocator; Release
// returns it to the pool once the Codec is no longer needed.
type Codec struct {
	// MaxDepth bounds array nesting during decode; zero means
	// DefaultMaxDepth.
	MaxDepth int

	buf *bytebufferpool.ByteBuffer
}

// NewCodec returns a Codec with an empty pooled buffer.
func NewCodec() *Codec {
	return &Codec{buf: bytebufferpool.Get()}
}

// Release returns the Codec's internal buffer to the pool. The Codec must
// not be used afterwards.
func (c *Codec) Release() {
	if c.buf != nil {
		bytebufferpool.Put(c.buf)
		c.buf = nil
	}
}

// Feed appends newly-read bytes to the internal buffer.
func (c *Codec) Feed(b []byte) {
	c.buf.B = append(c.buf.B, b...)
}

// Pending reports how many unconsumed bytes are buffered, which a caller
// may use to size its next socket read.
func (c *Codec) Pending() int { return len(c.buf.B) }

func (c *Codec) maxDepth() int {
	if c.MaxDepth > 0 {
		return c.MaxDepth
	}
	return DefaultMaxDepth
}

func (c *Codec) advance(n int) {
	c.buf.B = append(c.buf.B[:0], c.buf.B[n:]...)
}

// DecodeResult is the doubly-wrapped outcome of one Decode call: Ready is
// false when no complete frame is available yet (the caller should Feed
// more bytes and retry). When Ready is true, Err carries a transient
// per-message error (a server "-" reply) if non-nil, and Value is only
// meaningful when Err is nil.
type DecodeResult struct {
	Ready bool
	Value Data
	Err   error
}

// Decode implements the six-step contract from spec §4.4:
//  1. empty buffer -> not ready
//  2. attempt to parse one frame at offset 0
//  3. success -> advance, return the frame (cloned, so it never aliases
//     the internal buffer past this call)
//  4. incomplete -> reserve the hinted capacity, not ready, don't advance
//  5. transient error (Redis "-" reply) -> advance, Ready with Err set
//  6. fatal error -> discard the offending byte, return the error itself
//     (not wrapped in DecodeResult) so the caller knows the codec may not
//     be able to continue
func (c *Codec) Decode() (DecodeResult, error) {
	if len(c.buf.B) == 0 {
		return DecodeResult{Ready: false}, nil
	}

	value, consumed, err := ParseFrame(c.buf.B, c.maxDepth())
	if err == nil {
		c.advance(consumed)
		return DecodeResult{Ready: true, Value: value.Clone()}, nil
	}

	if needed, ok := asIncomplete(err); ok {
		if needed > 0 {
			c.reserve(needed)
		}
		return DecodeResult{Ready: false}, nil
	}

	// ParseFrame reports 0 consumed for every fatal error (e.g. unknown
	// type byte); there is nothing useful to advance past, so fall back to
	// discarding the single offending byte to avoid spinning forever on
	// the same input.
	if consumed == 0 {
		consumed = 1
		if consumed > len(c.buf.B) {
			consumed = len(c.buf.B)
		}
	}
	c.advance(consumed)

	var e *Error
	if asError(err, &e) && e.Kind == KindRedis {
		return DecodeResult{Ready: true, Err: e}, nil
	}
	return DecodeResult{}, err
}

func (c *Codec) reserve(extra int) {
	if cap(c.buf.B)-len(c.buf.B) >= extra {
		return
	}
	grown := make([]byte, len(c.buf.B), len(c.buf.B)+extra)
	copy(grown, c.buf.B)
	c.buf.B = grown
}

// Encode serializes d to w using the Serializer. It has no buffering
// behavior of its own; callers that want to batch writes (pipelining)
// should wrap w in a *bufio.Writer and flush once after encoding every
// command, which is exactly what Connection.Pipeline does.
func (c *Codec) Encode(w io.Writer, d Data) error {
	return (Serializer{}).Write(w, d)
}
