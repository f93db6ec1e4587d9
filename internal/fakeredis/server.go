/*
Package fakeredis is a minimal in-process RESP2 server used only by this
module's own tests, so Connection/Pipeline/pubsub/stream behavior can be
exercised without a live Redis server for every test run (a real server is
still exercised by the REDKIT_TEST_ADDR-gated integration tests).

This is an adaptation of the teacher's server.go/types.go/commands.go: the
same goroutine-per-connection accept loop, atomic connection-state field,
sync.Once close, and CommandHandler registry survive, repurposed from "be
a standalone Redis-compatible server" to "answer just enough of the
protocol to drive this module's client tests" — an in-memory key/value
store, a pubsub broker, and a stream store, dispatching through the very
rediwire codec/serializer the Connection under test uses, rather than a
parallel hand-rolled parser.
*/
package fakeredis

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/l00pss/rediwire"
)

// ConnState tracks a fake client connection's lifecycle, mirroring the
// teacher's ConnState enum.
type ConnState int32

const (
	StateNew ConnState = iota
	StateActive
	StateClosed
)

// Reply is what a Handler returns: either a Data value or a server error
// string, mirroring how RESP itself keeps "-" replies out of the Data
// tree in this module (errors.go) while still needing to go somewhere.
type Reply struct {
	Err        string
	Value      rediwire.Data
	Suppressed bool // true when the handler already pushed its own reply(ies)
}

func ok() Reply                   { return Reply{Value: rediwire.SimpleString("OK")} }
func value(d rediwire.Data) Reply { return Reply{Value: d} }
func errorf(msg string) Reply     { return Reply{Err: msg} }
func suppressed() Reply           { return Reply{Suppressed: true} }

// Handler processes one command's arguments (command name included as
// args[0]) and returns the reply to send back.
type Handler func(s *Server, c *ClientConn, args []string) Reply

// Server is a tiny RESP2 server: an address, a registry of handlers, and
// the in-memory state the default handlers operate on.
type Server struct {
	handlers map[string]Handler

	mu      sync.Mutex
	store   map[string][]byte
	subs    map[string]map[*ClientConn]struct{} // channel -> subscribers
	pats    map[string]map[*ClientConn]struct{} // pattern -> subscribers
	streams map[string][]streamEntry

	listener net.Listener
	wg       sync.WaitGroup
	closed   atomic.Bool
}

type streamEntry struct {
	id     string
	fields []string // flat field,value,...
}

// ClientConn is one accepted connection's server-side state.
type ClientConn struct {
	nc     net.Conn
	writer *bufio.Writer
	state  atomic.Int32

	mu       sync.Mutex
	channels map[string]struct{}
	pats     map[string]struct{}
}

// push writes an out-of-band message (a pubsub delivery) directly to this
// client, outside of the request/response cycle.
func (c *ClientConn) push(d rediwire.Data) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := (rediwire.Serializer{}).Write(c.writer, d); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *ClientConn) subCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.channels) + len(c.pats))
}

// New builds a Server with the default command set registered. It does
// not listen until Start is called.
func New() *Server {
	s := &Server{
		handlers: make(map[string]Handler),
		store:    make(map[string][]byte),
		subs:     make(map[string]map[*ClientConn]struct{}),
		pats:     make(map[string]map[*ClientConn]struct{}),
		streams:  make(map[string][]streamEntry),
	}
	s.registerDefaultHandlers()
	return s
}

// Register adds or replaces the handler for name (case-insensitive).
func (s *Server) Register(name string, h Handler) {
	s.handlers[strings.ToUpper(name)] = h
}

// Start listens on a loopback port chosen by the OS and begins accepting
// connections in the background. It returns the address to dial.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	return ln.Addr().String(), nil
}

// Close stops accepting new connections, closes the listener and every
// connection it accepted, and waits for their goroutines to exit.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	var accepted []net.Conn
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			// the listener was closed: cut off every client so their serve
			// goroutines return and Close's wait can finish.
			for _, a := range accepted {
				_ = a.Close()
			}
			return
		}
		accepted = append(accepted, nc)
		c := &ClientConn{
			nc:       nc,
			writer:   bufio.NewWriter(nc),
			channels: make(map[string]struct{}),
			pats:     make(map[string]struct{}),
		}
		c.state.Store(int32(StateNew))
		s.wg.Add(1)
		go s.serve(c)
	}
}

func (s *Server) serve(c *ClientConn) {
	defer s.wg.Done()
	defer s.dropConn(c)
	defer c.nc.Close()

	reader := bufio.NewReader(c.nc)
	codec := rediwire.NewCodec()
	defer codec.Release()

	buf := make([]byte, 4096)
	for {
		res, err := codec.Decode()
		if err != nil {
			return
		}
		if !res.Ready {
			n, rerr := reader.Read(buf)
			if n > 0 {
				codec.Feed(buf[:n])
			}
			if rerr != nil {
				if rerr != io.EOF {
					return
				}
				return
			}
			continue
		}
		if res.Err != nil {
			continue // transient; never produced by requests we issue ourselves
		}
		if res.Value.Kind != rediwire.KindArray {
			continue
		}

		args := make([]string, len(res.Value.Array))
		for i, el := range res.Value.Array {
			args[i] = dataText(el)
		}
		if len(args) == 0 {
			continue
		}

		c.state.Store(int32(StateActive))
		reply := s.dispatch(c, args)
		if reply.Suppressed {
			continue
		}
		if err := writeReply(c.writer, reply); err != nil {
			return
		}
		if err := c.writer.Flush(); err != nil {
			return
		}
	}
}

func writeReply(w *bufio.Writer, r Reply) error {
	if r.Err != "" {
		_, err := w.WriteString("-" + r.Err + "\r\n")
		return err
	}
	return (rediwire.Serializer{}).Write(w, r.Value)
}

func (s *Server) dispatch(c *ClientConn, args []string) Reply {
	name := strings.ToUpper(args[0])
	h, ok := s.handlers[name]
	if !ok {
		return errorf("ERR unknown command '" + args[0] + "'")
	}
	return h(s, c, args)
}

func (s *Server) dropConn(c *ClientConn) {
	c.state.Store(int32(StateClosed))
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range c.channels {
		delete(s.subs[ch], c)
	}
	for p := range c.pats {
		delete(s.pats[p], c)
	}
}

func dataText(d rediwire.Data) string {
	switch d.Kind {
	case rediwire.KindBulkString:
		return string(d.Bulk)
	case rediwire.KindSimpleString:
		return d.Str
	case rediwire.KindInteger:
		return strconv.FormatInt(d.Int, 10)
	default:
		return ""
	}
}
