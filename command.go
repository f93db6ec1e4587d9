/*
This file provides a thin command-convenience layer over Connection: a
Command interface plus the two commands the original connection crate
ships a concrete type for (command/connection.rs's Hello, command/
pubsub.rs's Unsubscribe). It is deliberately not a command builder — argv
construction (Argv/ArgvStrings in data.go) remains the sole way to build a
command's wire shape; Command only sequences calls to Connection.
*/
package rediwire

import (
	"context"
)

// Command is something that can be run against a Connection, returning a
// value of whatever shape makes sense for that command.
type Command interface {
	Run(ctx context.Context, conn *Connection) (any, error)
}

// Hello issues HELLO 2 (requesting protocol version 2, since this module
// only speaks RESP2), falling back to AUTH when talking to a server old
// enough not to know HELLO at all. Grounded on original_source/src/
// command/connection.rs's Hello<U, P>.
type Hello struct {
	Username string // empty means the server default ("default")
	Password string // empty means no AUTH at all
}

const helloUnsupportedMessage = "ERR unknown command 'HELLO'"

// Run implements Command.
func (h Hello) Run(ctx context.Context, conn *Connection) (any, error) {
	var err error
	if h.Password != "" {
		username := h.Username
		if username == "" {
			username = "default"
		}
		_, err = conn.Cmd(ctx, "HELLO", "2", "AUTH", username, h.Password)
	} else {
		_, err = conn.Cmd(ctx, "HELLO", "2")
	}
	if err == nil {
		return nil, nil
	}

	var e *Error
	if !asError(err, &e) || e.Kind != KindRedis || e.Message != helloUnsupportedMessage {
		return nil, err
	}

	if h.Password == "" {
		return nil, nil
	}
	if h.Username != "" {
		_, err = conn.Cmd(ctx, "AUTH", h.Username, h.Password)
	} else {
		_, err = conn.Cmd(ctx, "AUTH", h.Password)
	}
	return nil, err
}

// Unsubscribe leaves every channel and pattern subscription, returning the
// connection to normal command mode. Grounded on original_source/src/
// command/pubsub.rs's Unsubscribe.
type Unsubscribe struct{}

// Run implements Command. It returns the []Data envelopes observed while
// draining the connection back out of pubsub mode.
func (Unsubscribe) Run(ctx context.Context, conn *Connection) (any, error) {
	// UNSUBSCRIBE/PUNSUBSCRIBE with no arguments leave every channel/
	// pattern; each leave produces its own ack, so the two replies
	// Pipeline reads here are just the first two acks in wire order — the
	// rest drain via the loop below, matching the original's two-phase
	// shape.
	if _, err := conn.Pipeline(ctx, [][]string{{"UNSUBSCRIBE"}, {"PUNSUBSCRIBE"}}); err != nil {
		return nil, err
	}

	var drained []Data
	for {
		d, err := conn.ReadCmd(ctx)
		if err != nil {
			return drained, err
		}
		// Stop at the first envelope that is not a [(p)unsubscribe, name,
		// remaining-count] ack with a positive count.
		if d.Kind != KindArray || len(d.Array) != 3 || d.Array[2].Kind != KindInteger {
			break
		}
		tag := d.Array[0].Str
		if d.Array[0].Kind == KindBulkString {
			tag = string(d.Array[0].Bulk)
		}
		if (tag != "unsubscribe" && tag != "punsubscribe") || d.Array[2].Int <= 0 {
			break
		}
		drained = append(drained, d)
	}
	return drained, nil
}
