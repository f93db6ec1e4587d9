package rediwire_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/l00pss/rediwire"
	"github.com/l00pss/rediwire/internal/fakeredis"
)

func startFakeServer(t *testing.T) (*fakeredis.Server, string) {
	t.Helper()
	s := fakeredis.New()
	addr, err := s.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, addr
}

func dial(t *testing.T, addr string) *rediwire.Connection {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := rediwire.New(ctx, addr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestConnectionCmdPingPong(t *testing.T) {
	_, addr := startFakeServer(t)
	conn := dial(t, addr)

	reply, err := conn.Cmd(context.Background(), "PING")
	if err != nil {
		t.Fatalf("Cmd: %v", err)
	}
	if !reply.EqualString("PONG") {
		t.Fatalf("got %+v, want PONG", reply)
	}
	if conn.IsDead() {
		t.Fatal("connection should still be alive")
	}
}

func TestConnectionSendCmdReadCmd(t *testing.T) {
	_, addr := startFakeServer(t)
	conn := dial(t, addr)
	ctx := context.Background()

	if err := conn.SendCmd(ctx, "SET", "foo", "bar"); err != nil {
		t.Fatalf("SendCmd: %v", err)
	}
	reply, err := conn.ReadCmd(ctx)
	if err != nil {
		t.Fatalf("ReadCmd: %v", err)
	}
	if !reply.EqualString("OK") {
		t.Fatalf("got %+v, want OK", reply)
	}

	reply, err = conn.Cmd(ctx, "GET", "foo")
	if err != nil {
		t.Fatalf("Cmd GET: %v", err)
	}
	if !reply.EqualBytes([]byte("bar")) {
		t.Fatalf("got %+v, want bar", reply)
	}
}

func TestConnectionSetGetDel(t *testing.T) {
	_, addr := startFakeServer(t)
	conn := dial(t, addr)
	ctx := context.Background()

	if _, err := conn.Cmd(ctx, "SET", "k", "v"); err != nil {
		t.Fatalf("SET: %v", err)
	}
	reply, err := conn.Cmd(ctx, "DEL", "k")
	if err != nil {
		t.Fatalf("DEL: %v", err)
	}
	if reply.Kind != rediwire.KindInteger || reply.Int != 1 {
		t.Fatalf("got %+v, want integer 1", reply)
	}

	reply, err = conn.Cmd(ctx, "GET", "k")
	if err != nil {
		t.Fatalf("GET after DEL: %v", err)
	}
	if !reply.IsNull() {
		t.Fatalf("got %+v, want null", reply)
	}
}

func TestConnectionTransientErrorDoesNotKillConnection(t *testing.T) {
	_, addr := startFakeServer(t)
	conn := dial(t, addr)
	ctx := context.Background()

	_, err := conn.Cmd(ctx, "DEBUG", "ERROR", "oops")
	if err == nil {
		t.Fatal("expected an error from DEBUG ERROR")
	}
	if !rediwire.IsTransient(err) {
		t.Fatalf("expected a transient error, got %v", err)
	}
	if conn.IsDead() {
		t.Fatal("transient Redis error must not mark the connection dead")
	}

	// the connection must still be usable for the next command
	reply, err := conn.Cmd(ctx, "PING")
	if err != nil {
		t.Fatalf("Cmd after transient error: %v", err)
	}
	if !reply.EqualString("PONG") {
		t.Fatalf("got %+v, want PONG", reply)
	}
}

func TestConnectionIsDeadOnIOFailure(t *testing.T) {
	srv, addr := startFakeServer(t)
	conn := dial(t, addr)
	ctx := context.Background()

	if _, err := conn.Cmd(ctx, "PING"); err != nil {
		t.Fatalf("Cmd: %v", err)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close server: %v", err)
	}

	// further reads should now fail with a non-transient error and mark
	// the connection dead.
	_, err := conn.Cmd(ctx, "PING")
	if err == nil {
		t.Fatal("expected an error once the server is gone")
	}
	if rediwire.IsTransient(err) {
		t.Fatalf("expected a fatal error, got transient: %v", err)
	}
	if !conn.IsDead() {
		t.Fatal("connection should be marked dead after an I/O failure")
	}

	// once dead, further calls fail fast without touching the socket again.
	if _, err := conn.Cmd(ctx, "PING"); err == nil {
		t.Fatal("expected an error on a dead connection")
	}
}

func TestConnectionPipelineHappyPath(t *testing.T) {
	_, addr := startFakeServer(t)
	conn := dial(t, addr)
	ctx := context.Background()

	results, err := conn.Pipeline(ctx, [][]string{
		{"SET", "a", "1"},
		{"SET", "b", "2"},
		{"GET", "a"},
		{"GET", "b"},
	})
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	if !results[2].EqualBytes([]byte("1")) {
		t.Fatalf("results[2] = %+v, want 1", results[2])
	}
	if !results[3].EqualBytes([]byte("2")) {
		t.Fatalf("results[3] = %+v, want 2", results[3])
	}
}

func TestConnectionPipelineEmpty(t *testing.T) {
	_, addr := startFakeServer(t)
	conn := dial(t, addr)

	results, err := conn.Pipeline(context.Background(), nil)
	if err != nil {
		t.Fatalf("Pipeline(nil): %v", err)
	}
	if results != nil {
		t.Fatalf("got %v, want nil", results)
	}
}

// TestConnectionPipelineFailFast confirms a reply error mid-batch aborts the
// whole call and discards every accumulated result, matching the original
// connection's read_cmd().await? propagation inside its pipeline loop.
func TestConnectionPipelineFailFast(t *testing.T) {
	_, addr := startFakeServer(t)
	conn := dial(t, addr)
	ctx := context.Background()

	results, err := conn.Pipeline(ctx, [][]string{
		{"SET", "x", "1"},
		{"DEBUG", "ERROR", "boom"},
		{"SET", "y", "2"},
	})
	if err == nil {
		t.Fatal("expected the pipeline to fail")
	}
	if !rediwire.IsTransient(err) {
		t.Fatalf("expected a transient error, got %v", err)
	}
	if results != nil {
		t.Fatalf("got %v, want nil results on failure", results)
	}
	// the connection is still usable since the failure was transient.
	if conn.IsDead() {
		t.Fatal("transient pipeline error must not mark the connection dead")
	}
}

func TestConnectionWriteDataReadDataRaw(t *testing.T) {
	_, addr := startFakeServer(t)
	conn := dial(t, addr)
	ctx := context.Background()

	if err := conn.WriteData(ctx, rediwire.ArgvStrings("ECHO", "hi")); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	reply, err := conn.ReadData(ctx)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if !reply.EqualBytes([]byte("hi")) {
		t.Fatalf("got %+v, want hi", reply)
	}
}

func TestConnectionRemoteAndLocalAddr(t *testing.T) {
	_, addr := startFakeServer(t)
	conn := dial(t, addr)

	if conn.RemoteAddr() == nil {
		t.Fatal("RemoteAddr should not be nil")
	}
	if conn.LocalAddr() == nil {
		t.Fatal("LocalAddr should not be nil")
	}
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	_, addr := startFakeServer(t)
	conn := dial(t, addr)

	if err := conn.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !conn.IsDead() {
		t.Fatal("a closed connection must report dead")
	}
}

// TestConnectionAgainstRealRedis exercises Connection against a real Redis
// server when REDKIT_TEST_ADDR names one; skipped otherwise, mirroring the
// original crate's REDIS_URL-gated integration tests.
func TestConnectionAgainstRealRedis(t *testing.T) {
	addr := os.Getenv("REDKIT_TEST_ADDR")
	if addr == "" {
		t.Skip("REDKIT_TEST_ADDR not set; skipping real-server integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := rediwire.New(ctx, addr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer conn.Close()

	reply, err := conn.Cmd(context.Background(), "PING")
	if err != nil {
		t.Fatalf("Cmd: %v", err)
	}
	if !reply.EqualString("PONG") {
		t.Fatalf("got %+v, want PONG", reply)
	}
}
