package fakeredis

import (
	"strings"

	"github.com/l00pss/rediwire"
	"github.com/l00pss/rediwire/model"
)

// registerDefaultHandlers wires up just enough of the Redis command set to
// drive this module's own tests: connection basics, a key/value store,
// pubsub, and streams. HELLO is deliberately left unregistered so
// Hello.Run's AUTH fallback path (command.go) has something real to fall
// back from.
func (s *Server) registerDefaultHandlers() {
	s.Register("PING", handlePing)
	s.Register("ECHO", handleEcho)
	s.Register("AUTH", handleAuth)
	s.Register("SET", handleSet)
	s.Register("GET", handleGet)
	s.Register("DEL", handleDel)
	s.Register("DEBUG", handleDebug)
	s.Register("SUBSCRIBE", handleSubscribe)
	s.Register("PSUBSCRIBE", handlePSubscribe)
	s.Register("UNSUBSCRIBE", handleUnsubscribe)
	s.Register("PUNSUBSCRIBE", handlePUnsubscribe)
	s.Register("PUBLISH", handlePublish)
	s.Register("XADD", handleXAdd)
	s.Register("XREAD", handleXRead)
}

func handlePing(_ *Server, _ *ClientConn, args []string) Reply {
	if len(args) >= 2 {
		return value(rediwire.BulkStringFromString(args[1]))
	}
	return value(rediwire.SimpleString("PONG"))
}

func handleEcho(_ *Server, _ *ClientConn, args []string) Reply {
	if len(args) < 2 {
		return errorf("ERR wrong number of arguments for 'echo' command")
	}
	return value(rediwire.BulkStringFromString(args[1]))
}

// handleAuth accepts any password, the behavior Hello.Run's
// fallback depends on to distinguish "server rejected credentials" from
// "server doesn't know HELLO".
func handleAuth(_ *Server, _ *ClientConn, args []string) Reply {
	if len(args) < 2 {
		return errorf("ERR wrong number of arguments for 'auth' command")
	}
	return ok()
}

func handleSet(s *Server, _ *ClientConn, args []string) Reply {
	if len(args) < 3 {
		return errorf("ERR wrong number of arguments for 'set' command")
	}
	s.mu.Lock()
	s.store[args[1]] = []byte(args[2])
	s.mu.Unlock()
	return ok()
}

func handleGet(s *Server, _ *ClientConn, args []string) Reply {
	if len(args) < 2 {
		return errorf("ERR wrong number of arguments for 'get' command")
	}
	s.mu.Lock()
	v, found := s.store[args[1]]
	s.mu.Unlock()
	if !found {
		return value(rediwire.Null)
	}
	return value(rediwire.BulkString(v))
}

func handleDel(s *Server, _ *ClientConn, args []string) Reply {
	s.mu.Lock()
	var n int64
	for _, key := range args[1:] {
		if _, found := s.store[key]; found {
			delete(s.store, key)
			n++
		}
	}
	s.mu.Unlock()
	return value(rediwire.Integer(n))
}

// handleDebug supports "DEBUG ERROR <message>", used by tests that need
// to provoke a transient Redis error on demand.
func handleDebug(_ *Server, _ *ClientConn, args []string) Reply {
	if len(args) >= 3 && strings.EqualFold(args[1], "ERROR") {
		return errorf(args[2])
	}
	return errorf("ERR unsupported DEBUG subcommand")
}

func handleSubscribe(s *Server, c *ClientConn, args []string) Reply {
	return subscribeMany(s, c, args[1:], false)
}

func handlePSubscribe(s *Server, c *ClientConn, args []string) Reply {
	return subscribeMany(s, c, args[1:], true)
}

// subscribeMany pushes one subscribe ack per channel directly to the
// client (pubsub acks are out-of-band pushes, not a single reply) and
// returns an empty-ish Reply for the dispatch loop to discard; the real
// replies already went out via push.
func subscribeMany(s *Server, c *ClientConn, names []string, pattern bool) Reply {
	s.mu.Lock()
	for _, name := range names {
		c.mu.Lock()
		if pattern {
			c.pats[name] = struct{}{}
		} else {
			c.channels[name] = struct{}{}
		}
		c.mu.Unlock()

		bucket := s.subs
		if pattern {
			bucket = s.pats
		}
		if bucket[name] == nil {
			bucket[name] = make(map[*ClientConn]struct{})
		}
		bucket[name][c] = struct{}{}
	}
	s.mu.Unlock()

	tag := "subscribe"
	if pattern {
		tag = "psubscribe"
	}
	for _, name := range names {
		_ = c.push(rediwire.Arr(
			rediwire.BulkStringFromString(tag),
			rediwire.BulkStringFromString(name),
			rediwire.Integer(c.subCount()),
		))
	}
	return suppressed() // already pushed; dispatch loop writes nothing further
}

func handleUnsubscribe(s *Server, c *ClientConn, args []string) Reply {
	return unsubscribeMany(s, c, args[1:], false)
}

func handlePUnsubscribe(s *Server, c *ClientConn, args []string) Reply {
	return unsubscribeMany(s, c, args[1:], true)
}

func unsubscribeMany(s *Server, c *ClientConn, names []string, pattern bool) Reply {
	c.mu.Lock()
	set := c.channels
	if pattern {
		set = c.pats
	}
	if len(names) == 0 {
		for name := range set {
			names = append(names, name)
		}
	}
	c.mu.Unlock()

	if len(names) == 0 {
		tag := "unsubscribe"
		if pattern {
			tag = "punsubscribe"
		}
		_ = c.push(rediwire.Arr(
			rediwire.BulkStringFromString(tag),
			rediwire.Null,
			rediwire.Integer(c.subCount()),
		))
		return suppressed()
	}

	s.mu.Lock()
	for _, name := range names {
		c.mu.Lock()
		delete(set, name)
		c.mu.Unlock()

		bucket := s.subs
		if pattern {
			bucket = s.pats
		}
		delete(bucket[name], c)
	}
	s.mu.Unlock()

	tag := "unsubscribe"
	if pattern {
		tag = "punsubscribe"
	}
	for _, name := range names {
		_ = c.push(rediwire.Arr(
			rediwire.BulkStringFromString(tag),
			rediwire.BulkStringFromString(name),
			rediwire.Integer(c.subCount()),
		))
	}
	return suppressed()
}

func handlePublish(s *Server, _ *ClientConn, args []string) Reply {
	if len(args) < 3 {
		return errorf("ERR wrong number of arguments for 'publish' command")
	}
	channel, payload := args[1], args[2]

	s.mu.Lock()
	recipients := make([]*ClientConn, 0, len(s.subs[channel]))
	for sub := range s.subs[channel] {
		recipients = append(recipients, sub)
	}
	s.mu.Unlock()

	for _, sub := range recipients {
		_ = sub.push(rediwire.Arr(
			rediwire.BulkStringFromString("message"),
			rediwire.BulkStringFromString(channel),
			rediwire.BulkStringFromString(payload),
		))
	}
	return value(rediwire.Integer(int64(len(recipients))))
}

func handleXAdd(s *Server, _ *ClientConn, args []string) Reply {
	if len(args) < 5 {
		return errorf("ERR wrong number of arguments for 'xadd' command")
	}
	key, id := args[1], args[2]
	fields := args[3:]

	s.mu.Lock()
	if id == "*" {
		id = model.Id{Ms: uint64(len(s.streams[key]) + 1), Seq: 0}.String()
	}
	s.streams[key] = append(s.streams[key], streamEntry{id: id, fields: fields})
	s.mu.Unlock()

	return value(rediwire.BulkStringFromString(id))
}

// handleXRead supports the single-key "XREAD STREAMS <key> <id>" form,
// enough to exercise model.ParseReadResponse end to end.
func handleXRead(s *Server, _ *ClientConn, args []string) Reply {
	streamsIdx := -1
	for i, a := range args {
		if strings.EqualFold(a, "STREAMS") {
			streamsIdx = i
			break
		}
	}
	if streamsIdx < 0 || (len(args)-streamsIdx-1)%2 != 0 {
		return errorf("ERR syntax error")
	}
	keysAndIds := args[streamsIdx+1:]
	n := len(keysAndIds) / 2
	keys := keysAndIds[:n]
	ids := keysAndIds[n:]

	s.mu.Lock()
	defer s.mu.Unlock()

	var perKey []rediwire.Data
	for i, key := range keys {
		entries := readAfter(s.streams[key], ids[i])
		if len(entries) == 0 {
			continue
		}
		entryData := make([]rediwire.Data, len(entries))
		for j, e := range entries {
			fieldData := make([]rediwire.Data, len(e.fields))
			for k, f := range e.fields {
				fieldData[k] = rediwire.BulkStringFromString(f)
			}
			entryData[j] = rediwire.Arr(
				rediwire.BulkStringFromString(e.id),
				rediwire.Arr(fieldData...),
			)
		}
		perKey = append(perKey, rediwire.Arr(
			rediwire.BulkStringFromString(key),
			rediwire.Arr(entryData...),
		))
	}
	if len(perKey) == 0 {
		return value(rediwire.Null)
	}
	return value(rediwire.Arr(perKey...))
}

func readAfter(entries []streamEntry, afterID string) []streamEntry {
	after, err := model.ParseID(afterID)
	if err != nil {
		return entries
	}
	var out []streamEntry
	for _, e := range entries {
		id, err := model.ParseID(e.id)
		if err != nil {
			continue
		}
		if id.Ms > after.Ms || (id.Ms == after.Ms && id.Seq > after.Seq) {
			out = append(out, e)
		}
	}
	return out
}
