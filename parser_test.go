package rediwire

import "testing"

func mustParse(t *testing.T, buf []byte) (Data, int) {
	t.Helper()
	value, n, err := ParseFrame(buf, DefaultMaxDepth)
	if err != nil {
		t.Fatalf("ParseFrame(%q): %v", buf, err)
	}
	return value, n
}

func TestParseFrameSimpleString(t *testing.T) {
	value, n := mustParse(t, []byte("+OK\r\n"))
	if !value.EqualString("OK") || n != 5 {
		t.Fatalf("got %+v, consumed %d", value, n)
	}
}

func TestParseFrameInteger(t *testing.T) {
	value, n := mustParse(t, []byte(":1000\r\n"))
	if value.Kind != KindInteger || value.Int != 1000 || n != 7 {
		t.Fatalf("got %+v, consumed %d", value, n)
	}
}

func TestParseFrameNegativeInteger(t *testing.T) {
	value, _ := mustParse(t, []byte(":-5\r\n"))
	if value.Int != -5 {
		t.Fatalf("got %+v", value)
	}
}

func TestParseFrameBulkString(t *testing.T) {
	value, n := mustParse(t, []byte("$5\r\nhello\r\n"))
	if !value.EqualBytes([]byte("hello")) || n != 11 {
		t.Fatalf("got %+v, consumed %d", value, n)
	}
}

func TestParseFrameEmptyBulkString(t *testing.T) {
	value, n := mustParse(t, []byte("$0\r\n\r\n"))
	if !value.EqualBytes([]byte{}) || n != 6 {
		t.Fatalf("got %+v, consumed %d", value, n)
	}
}

func TestParseFrameNullBulkString(t *testing.T) {
	value, n := mustParse(t, []byte("$-1\r\n"))
	if !value.IsNull() || n != 5 {
		t.Fatalf("got %+v, consumed %d", value, n)
	}
}

func TestParseFrameArray(t *testing.T) {
	value, n := mustParse(t, []byte("*2\r\n$3\r\nfoo\r\n:7\r\n"))
	if value.Kind != KindArray || len(value.Array) != 2 || n != 17 {
		t.Fatalf("got %+v, consumed %d", value, n)
	}
	if !value.Array[0].EqualBytes([]byte("foo")) || value.Array[1].Int != 7 {
		t.Fatalf("unexpected array contents: %+v", value.Array)
	}
}

func TestParseFrameEmptyArray(t *testing.T) {
	value, n := mustParse(t, []byte("*0\r\n"))
	if value.Kind != KindArray || len(value.Array) != 0 || n != 4 {
		t.Fatalf("got %+v, consumed %d", value, n)
	}
}

func TestParseFrameNullArray(t *testing.T) {
	value, n := mustParse(t, []byte("*-1\r\n"))
	if !value.IsNull() || n != 5 {
		t.Fatalf("got %+v, consumed %d", value, n)
	}
}

func TestParseFrameNestedArray(t *testing.T) {
	value, _ := mustParse(t, []byte("*1\r\n*2\r\n+a\r\n+b\r\n"))
	if len(value.Array) != 1 || len(value.Array[0].Array) != 2 {
		t.Fatalf("got %+v", value)
	}
}

func TestParseFrameErrorReplyLiftsToRedisError(t *testing.T) {
	_, _, err := ParseFrame([]byte("-ERR unknown command\r\n"), DefaultMaxDepth)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsTransient(err) {
		t.Fatalf("a '-' reply must be transient, got %v", err)
	}
	var e *Error
	if !asError(err, &e) || e.Kind != KindRedis || e.Message != "ERR unknown command" {
		t.Fatalf("unexpected error shape: %+v", err)
	}
}

func TestParseFrameIncompleteNeverAdvances(t *testing.T) {
	_, _, err := ParseFrame([]byte("$5\r\nhel"), DefaultMaxDepth)
	if _, ok := asIncomplete(err); !ok {
		t.Fatalf("expected an incomplete signal, got %v", err)
	}
}

func TestParseFrameIncompleteOnBareLine(t *testing.T) {
	_, _, err := ParseFrame([]byte("+OK"), DefaultMaxDepth)
	if _, ok := asIncomplete(err); !ok {
		t.Fatalf("expected incomplete for a line missing its terminator, got %v", err)
	}
}

func TestParseFrameChunkInvariance(t *testing.T) {
	full := []byte("*2\r\n$3\r\nfoo\r\n:7\r\n")
	whole, _ := mustParse(t, full)

	codec := NewCodec()
	defer codec.Release()
	var got DecodeResult
	for i := range full {
		codec.Feed(full[i : i+1])
		res, err := codec.Decode()
		if err != nil {
			t.Fatalf("Decode at byte %d: %v", i, err)
		}
		if res.Ready {
			got = res
			break
		}
	}
	if !got.Ready {
		t.Fatal("never became ready after feeding every byte")
	}
	if !got.Value.Equal(whole) {
		t.Fatalf("chunked decode = %+v, want %+v", got.Value, whole)
	}
}

func TestParseFrameUnknownTypeByteIsFraming(t *testing.T) {
	_, _, err := ParseFrame([]byte("?garbage\r\n"), DefaultMaxDepth)
	var e *Error
	if !asError(err, &e) || e.Kind != KindFraming {
		t.Fatalf("expected a framing error, got %v", err)
	}
}

func TestParseFrameEmbeddedCRIsFraming(t *testing.T) {
	_, _, err := ParseFrame([]byte("+a\rb\r\n"), DefaultMaxDepth)
	var e *Error
	if !asError(err, &e) || e.Kind != KindFraming {
		t.Fatalf("expected a framing error for embedded CR, got %v", err)
	}
}

func TestParseFrameDepthExceeded(t *testing.T) {
	_, _, err := ParseFrame([]byte("*1\r\n*1\r\n+x\r\n"), 1)
	var e *Error
	if !asError(err, &e) || e.Kind != KindFraming {
		t.Fatalf("expected a framing error for exceeded depth, got %v", err)
	}
}

// TestStreamReadLiteral exercises a realistic nested XREAD-shaped frame in
// one shot, grounded on original_source's stream_read scenario.
func TestStreamReadLiteral(t *testing.T) {
	buf := []byte("*1\r\n*2\r\n$3\r\nfoo\r\n*1\r\n*2\r\n$3\r\n1-0\r\n*2\r\n$3\r\nabc\r\n$3\r\ndef\r\n")
	value, n := mustParse(t, buf)
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if value.Kind != KindArray || len(value.Array) != 1 {
		t.Fatalf("got %+v", value)
	}
}

// TestPubsubSubscribeLiteral mirrors original_source/src/model/pubsub.rs's
// literal subscribe test bytes.
func TestPubsubSubscribeLiteral(t *testing.T) {
	buf := []byte("*3\r\n$9\r\nsubscribe\r\n$3\r\nfoo\r\n:1\r\n")
	value, n := mustParse(t, buf)
	if n != len(buf) || len(value.Array) != 3 {
		t.Fatalf("got %+v, consumed %d", value, n)
	}
	if !value.Array[0].EqualBytes([]byte("subscribe")) {
		t.Fatalf("unexpected tag: %+v", value.Array[0])
	}
}
