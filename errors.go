/*
Package rediwire implements the RESP2 wire protocol and a TCP connection
abstraction for talking to a Redis server.

This file defines the error taxonomy used throughout the module. Every
failure that can occur while parsing, encoding, or exchanging RESP frames is
classified into one of a small set of Kinds. The classification matters
because it determines whether a Connection stays usable (see IsDead in
connection.go):

- KindRedis errors are the server telling us something went wrong with a
  single command. The socket is fine; the next command may proceed.
- Everything else (KindIO, KindFraming, KindMapping, KindSerialization)
  means either the transport or the byte stream itself can no longer be
  trusted, or a local encode/decode step failed for a reason that doesn't
  involve the wire at all. KindIO and KindFraming mark a Connection dead.
  KindMapping (typed decoding) and KindSerialization from ToData are
  scoped to a single call; a KindSerialization failure while a Connection
  writes a frame marks it dead, as any non-KindRedis error there does.
*/
package rediwire

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind distinguishes the different ways a RESP operation can fail.
type ErrorKind int

const (
	// KindIO means the underlying transport failed (dial, read, write).
	KindIO ErrorKind = iota
	// KindFraming means the byte stream contained bytes that cannot be a
	// valid RESP frame (as opposed to simply being incomplete).
	KindFraming
	// KindRedis means the server replied with a "-" error. Transient.
	KindRedis
	// KindMapping means a well-formed Data value couldn't be coerced into
	// a requested Go shape (wrong arity, out-of-range integer, ...).
	KindMapping
	// KindSerialization means a Go value couldn't be encoded as RESP.
	KindSerialization
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFraming:
		return "framing"
	case KindRedis:
		return "redis"
	case KindMapping:
		return "mapping"
	case KindSerialization:
		return "serialization"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every exported operation in
// this module, apart from the "incomplete frame" signal ParseFrame returns
// when more bytes are needed. Message carries the server's text for KindRedis, or a
// human-readable description otherwise.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("rediwire: %s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("rediwire: %s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As reach the underlying cause, typically a
// *net.OpError or io.EOF for KindIO.
func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: pkgerrors.WithStack(cause)}
}

// IsTransient reports whether err leaves the connection it came from
// usable. Only a server-reported ("-") reply is transient; every other
// error kind is fatal to the connection that produced it.
func IsTransient(err error) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == KindRedis
}

// asError is a tiny errors.As wrapper kept local to avoid importing
// "errors" for the call sites across this package.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// RedisError builds a transient KindRedis error from the server's error
// text (without the leading '-').
func RedisError(message string) *Error {
	return newError(KindRedis, message)
}

// IOError wraps a transport failure.
func IOError(cause error) *Error {
	return wrapError(KindIO, "transport failure", cause)
}

// FramingError reports malformed RESP bytes.
func FramingError(message string) *Error {
	return newError(KindFraming, message)
}

// MappingError reports a Data value that doesn't fit a requested shape.
func MappingError(message string) *Error {
	return newError(KindMapping, message)
}

// SerializationError reports a Go value that can't be encoded as RESP.
func SerializationError(message string) *Error {
	return newError(KindSerialization, message)
}
