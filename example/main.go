// Command example is a short demonstration of the rediwire client library
// against a real Redis server, not a CLI (see DESIGN.md for why this module
// has no command-line surface of its own).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/l00pss/rediwire"

	_ "go.uber.org/automaxprocs"
)

func main() {
	addr := os.Getenv("REDKIT_TEST_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := rediwire.New(ctx, addr)
	if err != nil {
		log.Fatalf("dial %s: %v", addr, err)
	}
	defer conn.Close()

	// HELLO falls back to AUTH on its own if the server predates HELLO.
	hello := rediwire.Hello{Password: os.Getenv("REDKIT_TEST_PASSWORD")}
	if _, err := hello.Run(ctx, conn); err != nil {
		log.Fatalf("hello: %v", err)
	}

	reply, err := conn.Cmd(ctx, "PING")
	if err != nil {
		log.Fatalf("ping: %v", err)
	}
	fmt.Println("PING ->", reply.Str)

	results, err := conn.Pipeline(ctx, [][]string{
		{"SET", "rediwire:example", "hello"},
		{"GET", "rediwire:example"},
		{"DEL", "rediwire:example"},
	})
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}
	fmt.Printf("SET -> %s\n", results[0].Str)
	fmt.Printf("GET -> %s\n", results[1].Bulk)
	fmt.Printf("DEL -> %d\n", results[2].Int)

	// Share one connection across goroutines via the pool adapter contract.
	mgr := &rediwire.Manager{Addr: addr}
	shared := rediwire.NewSharedConnection(conn)
	if err := mgr.IsValid(ctx, conn); err != nil {
		log.Fatalf("validate: %v", err)
	}
	if _, err := shared.Cmd(ctx, "PING"); err != nil {
		log.Fatalf("shared ping: %v", err)
	}

	fmt.Println("connection dead:", conn.IsDead())
}
