/*
This file implements the pool adapter contract from spec §6.3: enough
surface for an external connection pool to create, validate, and retire
Connections, without this module implementing any pooling policy itself
(sizing, recycling schedule, wait queues — all explicitly out of scope,
grounded on the teacher's own deliberate omission of a pool in favor of a
plain accept loop, and on original_source's pool.rs/manager.rs deferring
the same to the external deadpool crate).
*/
package rediwire

import (
	"context"
	"sync"
)

// Manager is the minimal adapter an external pool needs: something that
// creates Connections and can tell whether one is still usable.
type Manager struct {
	// Addr is the address New dials. Dial, if set, overrides the default
	// TCP dial for tests (e.g. pointing at an in-memory fixture).
	Addr string
	Dial func(ctx context.Context, addr string) (*Connection, error)
}

// Connect creates a new Connection, the pool-facing equivalent of the
// original crate's managed::Manager::create.
func (m *Manager) Connect(ctx context.Context) (*Connection, error) {
	if m.Dial != nil {
		return m.Dial(ctx, m.Addr)
	}
	return New(ctx, m.Addr)
}

// IsValid sends PING and requires a PONG reply, spec §6.3's is_valid
// check. Any other outcome — including a transient Redis error — counts
// as invalid, since a healthy idle connection always answers PING
// immediately with PONG.
func (m *Manager) IsValid(ctx context.Context, c *Connection) error {
	reply, err := c.Cmd(ctx, "PING")
	if err != nil {
		return err
	}
	if !reply.EqualString("PONG") {
		return MappingError("PING did not reply PONG")
	}
	return nil
}

// HasBroken reports whether c should be discarded rather than recycled.
func (m *Manager) HasBroken(c *Connection) bool {
	return c.IsDead()
}

// SharedConnection wraps a Connection with a mutex so it can be handed to
// multiple goroutines, the one concession spec §5 makes to Connection not
// being safe for concurrent use on its own.
type SharedConnection struct {
	mu   sync.Mutex
	conn *Connection
}

// NewSharedConnection wraps conn for concurrent use.
func NewSharedConnection(conn *Connection) *SharedConnection {
	return &SharedConnection{conn: conn}
}

// Cmd serializes access to the wrapped Connection's Cmd.
func (s *SharedConnection) Cmd(ctx context.Context, args ...string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Cmd(ctx, args...)
}

// Pipeline serializes access to the wrapped Connection's Pipeline.
func (s *SharedConnection) Pipeline(ctx context.Context, cmds [][]string) ([]Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Pipeline(ctx, cmds)
}

// IsDead reports the wrapped Connection's liveness.
func (s *SharedConnection) IsDead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.IsDead()
}

// Close closes the wrapped Connection.
func (s *SharedConnection) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
