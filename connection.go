/*
This file provides the Connection type: a TCP connection to a Redis server
speaking RESP2, wrapping buffered I/O with the Codec from codec.go.

Core Responsibilities:
- Dialing and holding a single TCP connection to a Redis-compatible server
- Buffered I/O for efficient command/reply exchange
- Thread-safe liveness tracking via an atomic dead flag
- Command, pipeline, and raw Stream/Sink-style read/write surfaces

Connection Lifecycle:
1. Dial (New) opens the socket and wraps it in buffered I/O.
2. Commands flow through Cmd/SendCmd/ReadCmd/Pipeline, or through the raw
   ReadData/WriteData pair once the connection enters PubSub mode.
3. Any non-transient error (I/O failure, malformed framing) marks the
   connection dead; from then on every call fails fast with a KindIO
   error without touching the socket again.
4. Close tears down the socket exactly once.

Thread Safety:
A Connection is not safe for concurrent use by multiple goroutines, the
same restriction the teacher's Connection documents for its per-client
socket: RESP2 has no request correlation, so concurrent writers would
scramble pipeline ordering. Callers that need shared access should go
through SharedConnection (pool.go), which serializes access with a
mutex.
*/
package rediwire

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DataReader is the read half of the Stream/Sink duality spec.md describes
// for an async Connection; Go expresses it as a blocking method instead of
// a poll-based trait.
type DataReader interface {
	ReadData(ctx context.Context) (Data, error)
}

// DataWriter is the write half of the duality.
type DataWriter interface {
	WriteData(ctx context.Context, d Data) error
}

// Connection is a TCP connection to a Redis server speaking RESP2.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	codec  *Codec
	logger *zap.Logger

	dead      atomic.Bool
	closeOnce sync.Once
}

const readChunkSize = 4096

// New dials addr and wraps the resulting socket for RESP2 exchange. The
// provided context governs only the dial itself, matching net.Dialer's
// contract; it is not retained for later operations.
func New(ctx context.Context, addr string) (*Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, IOError(err)
	}
	return newConnection(conn, defaultLogger), nil
}

func newConnection(conn net.Conn, logger *zap.Logger) *Connection {
	return &Connection{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		codec:  NewCodec(),
		logger: logger,
	}
}

// IsDead reports whether a non-transient error has already been observed
// on this connection. Once true, it never becomes false again (spec §4.5:
// "is_dead is monotonic"); the caller should discard the Connection and
// open a new one.
func (c *Connection) IsDead() bool { return c.dead.Load() }

// markDead flips the dead flag for any error that is not a transient
// Redis reply, mirroring the teacher's atomic connection-state field.
func (c *Connection) markDead(err error) error {
	if IsTransient(err) {
		return err
	}
	if !c.dead.Swap(true) {
		var e *Error
		if asError(err, &e) {
			observeFatal(e.Kind)
			c.logger.Warn("connection marked dead",
				zap.String("kind", e.Kind.String()),
				zap.Error(err),
			)
		}
	}
	return err
}

// Close releases the codec buffer and closes the underlying socket. Safe
// to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.dead.Store(true)
		c.codec.Release()
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr returns the server's network address.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// LocalAddr returns this end's network address.
func (c *Connection) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// WriteData encodes and flushes a single Data value. ctx is honored only
// for cancellation via the socket's write deadline, not as a
// request-correlation mechanism (RESP2 has none; see spec §5).
func (c *Connection) WriteData(ctx context.Context, d Data) error {
	if c.IsDead() {
		return deadConnErr()
	}
	if err := c.applyDeadline(ctx); err != nil {
		return err
	}
	if err := c.codec.Encode(c.writer, d); err != nil {
		return c.markDead(err)
	}
	if err := c.writer.Flush(); err != nil {
		return c.markDead(c.markDeadIOErr(err))
	}
	return nil
}

// ReadData blocks for exactly one frame, reading more from the socket as
// needed. A transient Redis "-" reply surfaces as an error here too (spec
// §4.5), but does not mark the connection dead.
func (c *Connection) ReadData(ctx context.Context) (Data, error) {
	if c.IsDead() {
		return Data{}, deadConnErr()
	}
	if err := c.applyDeadline(ctx); err != nil {
		return Data{}, err
	}

	for {
		res, err := c.codec.Decode()
		if err != nil {
			return Data{}, c.markDead(err)
		}
		if res.Ready {
			observeDecode(res)
			if res.Err != nil {
				return Data{}, res.Err
			}
			return res.Value, nil
		}

		chunk := make([]byte, readChunkSize)
		n, err := c.reader.Read(chunk)
		if n > 0 {
			c.codec.Feed(chunk[:n])
		}
		if err != nil {
			return Data{}, c.markDead(c.markDeadIOErr(err))
		}
	}
}

func (c *Connection) applyDeadline(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return c.markDead(IOError(err))
	}
	return nil
}

func (c *Connection) markDeadIOErr(err error) error {
	if err == io.EOF {
		return IOError(io.ErrUnexpectedEOF)
	}
	return IOError(err)
}

// Cmd sends a command built from args (each a command word or argument)
// and waits for its single reply.
func (c *Connection) Cmd(ctx context.Context, args ...string) (Data, error) {
	if err := c.SendCmd(ctx, args...); err != nil {
		return Data{}, err
	}
	return c.ReadCmd(ctx)
}

// SendCmd writes a command without waiting for a reply, for callers that
// want to pipeline manually via repeated SendCmd/ReadCmd pairs.
func (c *Connection) SendCmd(ctx context.Context, args ...string) error {
	commandsSent.Inc()
	return c.WriteData(ctx, ArgvStrings(args...))
}

// ReadCmd reads a single reply, the counterpart to SendCmd.
func (c *Connection) ReadCmd(ctx context.Context) (Data, error) {
	return c.ReadData(ctx)
}

// Pipeline writes every command in cmds back-to-back behind a single
// flush, then reads that many replies in FIFO order — the only ordering
// guarantee RESP2 offers (spec §5: no request correlation beyond FIFO).
func (c *Connection) Pipeline(ctx context.Context, cmds [][]string) ([]Data, error) {
	if c.IsDead() {
		return nil, deadConnErr()
	}
	if len(cmds) == 0 {
		return nil, nil
	}
	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}

	for _, cmd := range cmds {
		if err := c.codec.Encode(c.writer, ArgvStrings(cmd...)); err != nil {
			return nil, c.markDead(err)
		}
	}
	if err := c.writer.Flush(); err != nil {
		return nil, c.markDead(c.markDeadIOErr(err))
	}
	commandsSent.Add(float64(len(cmds)))

	// A reply error anywhere in the batch — transient or not — aborts the
	// whole call, matching the original Rust connection's `read_cmd().await?`
	// inside its pipeline loop: there is no per-command error aggregation
	// (see the dropped go-multierror dependency in DESIGN.md).
	results := make([]Data, 0, len(cmds))
	for range cmds {
		d, err := c.ReadCmd(ctx)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, nil
}

func deadConnErr() *Error {
	return IOError(net.ErrClosed)
}
